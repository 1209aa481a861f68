package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a-bouts/race-engine/latlon"
	"github.com/a-bouts/race-engine/wind"
	log "github.com/sirupsen/logrus"
)

var ErrStopped = errors.New("session runner stopped")

type command struct {
	apply func(*Session) any
	reply chan any
}

// Runner owns a Session and drives it from a single goroutine. Other
// goroutines talk to it through commands and read snapshots.
type Runner struct {
	session  *Session
	interval time.Duration
	commands chan command
	done     chan struct{}

	latest atomic.Pointer[Snapshot]

	mu      sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	stopped bool

	render   func(Snapshot)
	onFinish []func(Snapshot)
}

func NewRunner(s *Session, interval time.Duration) *Runner {
	r := &Runner{
		session:  s,
		interval: interval,
		commands: make(chan command),
		done:     make(chan struct{}),
		subs:     make(map[int]chan Snapshot),
	}
	snap := s.Snapshot()
	r.latest.Store(&snap)
	return r
}

// OnRender registers fn to receive every snapshot on the simulation
// goroutine. It must be set before Run and must not block.
func (r *Runner) OnRender(fn func(Snapshot)) {
	r.render = fn
}

// OnFinish registers fn to be called once when the race is finished or
// expired. It must be set before Run.
func (r *Runner) OnFinish(fn func(Snapshot)) {
	r.onFinish = append(r.onFinish, fn)
}

// Run ticks the session until the race ends, it is abandoned or ctx is
// done.
func (r *Runner) Run(ctx context.Context) error {
	defer r.stop()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.session.Abandon()
			r.publish(r.session.Snapshot())
			return ctx.Err()

		case c := <-r.commands:
			c.reply <- c.apply(r.session)
			snap := r.session.Snapshot()
			r.publish(snap)
			if snap.Abandoned {
				return nil
			}

		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			snap := r.session.Tick(dt)
			r.publish(snap)
			if snap.RaceFinished || snap.Expired {
				log.WithFields(log.Fields{"session": snap.SessionID, "finished": snap.RaceFinished}).Info("Race over")
				for _, fn := range r.onFinish {
					fn(snap)
				}
				return nil
			}
		}
	}
}

func (r *Runner) publish(s Snapshot) {
	r.latest.Store(&s)
	if r.render != nil {
		r.render(s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- s:
		default:
			// latest wins for a lagging subscriber
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (r *Runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	close(r.done)
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Snapshot is the last published snapshot.
func (r *Runner) Snapshot() Snapshot {
	return *r.latest.Load()
}

// Subscribe returns a channel receiving snapshots, starting with the
// latest one, and a function to unsubscribe. The channel is closed when
// the runner stops.
func (r *Runner) Subscribe() (<-chan Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Snapshot, 1)
	ch <- *r.latest.Load()
	if r.stopped {
		close(ch)
		return ch, func() {}
	}

	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

func call[T any](ctx context.Context, r *Runner, fn func(*Session) T) (T, error) {
	var zero T
	c := command{
		apply: func(s *Session) any { return fn(s) },
		reply: make(chan any, 1),
	}

	select {
	case r.commands <- c:
	case <-r.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-c.reply:
		return v.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

type tackResult struct {
	target float64
	ok     bool
}

// Tack asks for a tack or gybe. ok is false when it was refused.
func (r *Runner) Tack(ctx context.Context) (float64, bool, error) {
	res, err := call(ctx, r, func(s *Session) tackResult {
		target, ok := s.RequestTack()
		return tackResult{target, ok}
	})
	return res.target, res.ok, err
}

func (r *Runner) SetHeading(ctx context.Context, heading float64) error {
	_, err := call(ctx, r, func(s *Session) struct{} {
		s.SetHeading(heading)
		return struct{}{}
	})
	return err
}

func (r *Runner) Merge(ctx context.Context, descs []wind.Descriptor) (int, error) {
	return call(ctx, r, func(s *Session) int {
		return s.MergeDescriptors(descs)
	})
}

func (r *Runner) Abandon(ctx context.Context) error {
	_, err := call(ctx, r, func(s *Session) struct{} {
		s.Abandon()
		return struct{}{}
	})
	return err
}

// WindAt samples the wind on the simulation goroutine.
func (r *Runner) WindAt(ctx context.Context, p latlon.LatLon) (wind.Vector, bool, error) {
	type sample struct {
		w  wind.Vector
		ok bool
	}
	res, err := call(ctx, r, func(s *Session) sample {
		w, ok := s.WindAt(p)
		return sample{w, ok}
	})
	return res.w, res.ok, err
}
