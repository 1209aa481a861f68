package wind

import (
	"context"
	"time"

	"github.com/a-bouts/race-engine/async"
	"github.com/a-bouts/race-engine/fetch"
	log "github.com/sirupsen/logrus"
)

// Loader fetches and decodes forecast steps in background goroutines.
// Its methods other than Request are called from the simulation
// goroutine only.
type Loader struct {
	fetcher fetch.Fetcher
	guard   async.Guard
	ctx     context.Context
	cancel  context.CancelFunc
	workers chan struct{}

	pending map[string]*request
	failed  map[string]time.Time

	// RetryAfter is the delay before a failed step is requested again.
	RetryAfter time.Duration
	now        func() time.Time
}

type request struct {
	desc   Descriptor
	future *async.Future[*Field]
}

func NewLoader(fetcher fetch.Fetcher, workers int) *Loader {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		fetcher:    fetcher,
		ctx:        ctx,
		cancel:     cancel,
		workers:    make(chan struct{}, workers),
		pending:    make(map[string]*request),
		failed:     make(map[string]time.Time),
		RetryAfter: 30 * time.Second,
		now:        time.Now,
	}
}

// Request starts fetching and decoding d. At most workers requests run
// at the same time, the others wait for a slot. A cancelled loader
// returns a future already failed with the context error.
func (l *Loader) Request(d Descriptor) *async.Future[*Field] {
	if err := l.ctx.Err(); err != nil {
		return async.Resolved[*Field](&l.guard, nil, err)
	}
	return async.Run(l.ctx, &l.guard, func(ctx context.Context) (*Field, error) {
		select {
		case l.workers <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer func() { <-l.workers }()

		data, err := l.fetcher.Fetch(ctx, d.SourceURL)
		if err != nil {
			return nil, &FetchError{URL: d.SourceURL, Err: err}
		}
		return Decode(d, data)
	})
}

// Poll attaches the completed fields the timeline still wants, then
// requests the steps it is missing. It returns the number of fields
// attached.
func (l *Loader) Poll(tl *Timeline) int {
	if l.ctx.Err() != nil {
		return 0
	}

	attached := 0
	for key, r := range l.pending {
		done := async.Apply(&l.guard, r.future, func(f *Field, err error) {
			if err != nil {
				log.WithError(err).Errorf("Error loading wind %s", r.desc)
				l.failed[key] = l.now().Add(l.RetryAfter)
				return
			}
			if tl.Attach(r.desc, f) {
				log.Debugf("Wind %s loaded", r.desc)
				attached++
			} else {
				log.Tracef("Dropping wind %s, no longer wanted", r.desc)
			}
		})
		if done {
			delete(l.pending, key)
		}
	}

	wanted := tl.Wanted()
	for key := range l.failed {
		if !containsKey(wanted, key) {
			delete(l.failed, key)
		}
	}

	for _, d := range wanted {
		key := d.Key()
		if _, ok := l.pending[key]; ok {
			continue
		}
		if retry, ok := l.failed[key]; ok {
			if l.now().Before(retry) {
				continue
			}
			delete(l.failed, key)
		}
		l.pending[key] = &request{desc: d, future: l.Request(d)}
	}

	return attached
}

func containsKey(descs []Descriptor, key string) bool {
	for _, d := range descs {
		if d.Key() == key {
			return true
		}
	}
	return false
}

// Pending is the number of requests in flight.
func (l *Loader) Pending() int {
	return len(l.pending)
}

// Cancel invalidates every outstanding request. The loader is unusable
// afterwards.
func (l *Loader) Cancel() {
	l.guard.Invalidate()
	l.cancel()
	l.pending = make(map[string]*request)
}
