package wind

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/a-bouts/race-engine/latlon"
)

// Descriptor names one forecast step: the instant it is valid for and
// where its data lives.
type Descriptor struct {
	Time      time.Time `json:"time" yaml:"time"`
	SourceURL string    `json:"sourceUrl" yaml:"sourceUrl"`
}

func (d Descriptor) Key() string {
	return fmt.Sprintf("%d|%s", d.Time.UnixNano(), d.SourceURL)
}

func (d Descriptor) String() string {
	return d.Time.UTC().Format("2006010215") + "(" + d.SourceURL + ")"
}

type slot struct {
	desc  Descriptor
	field *Field
}

// Timeline holds the ordered forecast steps of a race. Only the current
// step and the next one are ever decoded; older steps are dropped as
// course time moves on. A Timeline is owned by one goroutine.
type Timeline struct {
	current  *slot
	upcoming []*slot
	// previous current field, kept only while the current step is
	// still loading, in place of it
	fallback *Field
}

func NewTimeline(descs []Descriptor) *Timeline {
	tl := &Timeline{}
	tl.Merge(descs)
	return tl
}

// Merge inserts descriptors found by a refresh and returns how many
// steps were added or moved to another source. Steps at or before the
// current one are ignored. A known step takes the refreshed source only
// while its field is not decoded yet, so a newer forecast run replaces
// an older one.
func (tl *Timeline) Merge(descs []Descriptor) int {
	known := make(map[int64]*slot, len(tl.upcoming))
	for _, s := range tl.upcoming {
		known[s.desc.Time.UnixNano()] = s
	}

	changed := 0
	inserted := false
	for _, d := range descs {
		if tl.current != nil && !d.Time.After(tl.current.desc.Time) {
			continue
		}
		if s, ok := known[d.Time.UnixNano()]; ok {
			if s.field == nil && s.desc.SourceURL != d.SourceURL {
				s.desc = d
				changed++
			}
			continue
		}
		s := &slot{desc: d}
		known[d.Time.UnixNano()] = s
		tl.upcoming = append(tl.upcoming, s)
		changed++
		inserted = true
	}
	if inserted {
		sort.SliceStable(tl.upcoming, func(i, j int) bool {
			return tl.upcoming[i].desc.Time.Before(tl.upcoming[j].desc.Time)
		})
		// only the next step keeps a decoded field
		for _, s := range tl.upcoming[1:] {
			s.field = nil
		}
	}
	return changed
}

// Advance moves the current step to the last one at or before
// courseTime. Before the first step, the earliest step is adopted when
// nothing is current yet. The current step never moves back.
func (tl *Timeline) Advance(courseTime time.Time) bool {
	if len(tl.upcoming) == 0 {
		return false
	}

	if courseTime.Before(tl.upcoming[0].desc.Time) {
		if tl.current != nil {
			return false
		}
		tl.setCurrent(0)
		return true
	}

	i := sort.Search(len(tl.upcoming), func(i int) bool {
		return tl.upcoming[i].desc.Time.After(courseTime)
	}) - 1
	tl.setCurrent(i)
	return true
}

func (tl *Timeline) setCurrent(i int) {
	if tl.current != nil && tl.current.field != nil {
		tl.fallback = tl.current.field
	}
	tl.current = tl.upcoming[i]
	tl.upcoming = tl.upcoming[i+1:]
	if tl.current.field != nil {
		tl.fallback = nil
	}
}

func (tl *Timeline) Current() (Descriptor, bool) {
	if tl.current == nil {
		return Descriptor{}, false
	}
	return tl.current.desc, true
}

func (tl *Timeline) Next() (Descriptor, bool) {
	if len(tl.upcoming) == 0 {
		return Descriptor{}, false
	}
	return tl.upcoming[0].desc, true
}

// Len is the number of known steps, current included.
func (tl *Timeline) Len() int {
	n := len(tl.upcoming)
	if tl.current != nil {
		n++
	}
	return n
}

// Loaded reports whether the current step is decoded.
func (tl *Timeline) Loaded() bool {
	return tl.current != nil && tl.current.field != nil
}

// Wanted lists the current and next steps whose fields are missing.
func (tl *Timeline) Wanted() []Descriptor {
	var wanted []Descriptor
	if tl.current != nil && tl.current.field == nil {
		wanted = append(wanted, tl.current.desc)
	}
	if len(tl.upcoming) > 0 && tl.upcoming[0].field == nil {
		wanted = append(wanted, tl.upcoming[0].desc)
	}
	return wanted
}

func (tl *Timeline) wants(d Descriptor) bool {
	for _, w := range tl.Wanted() {
		if w == d {
			return true
		}
	}
	return false
}

// Attach stores a decoded field. It is refused unless its step is still
// the current or the next one.
func (tl *Timeline) Attach(d Descriptor, f *Field) bool {
	if f == nil {
		return false
	}
	switch {
	case tl.current != nil && tl.current.desc == d:
		tl.current.field = f
		tl.fallback = nil
		return true
	case len(tl.upcoming) > 0 && tl.upcoming[0].desc == d:
		tl.upcoming[0].field = f
		return true
	}
	return false
}

func (tl *Timeline) currentField() *Field {
	if tl.current != nil && tl.current.field != nil {
		return tl.current.field
	}
	return tl.fallback
}

// SampleAt is the wind at p blended between the current and next fields
// by the position of courseTime between their times.
func (tl *Timeline) SampleAt(p latlon.LatLon, courseTime time.Time) (Vector, bool) {
	cur := tl.currentField()
	if cur == nil {
		return Vector{}, false
	}
	a, ok := cur.SampleAt(p)
	if !ok {
		return Vector{}, false
	}
	if len(tl.upcoming) == 0 || tl.upcoming[0].field == nil {
		return a, true
	}
	next := tl.upcoming[0].field
	b, ok := next.SampleAt(p)
	if !ok {
		return a, true
	}

	return a.Lerp(b, blendFactor(cur.Time, next.Time, courseTime)), true
}

func blendFactor(from, to, t time.Time) float64 {
	span := to.Sub(from)
	if span <= 0 {
		return 0
	}
	h := float64(t.Sub(from)) / float64(span)
	if h < 0 {
		return 0
	}
	if h > 1 {
		return 1
	}
	return h
}

func (tl *Timeline) String() string {
	var steps []string
	if tl.current != nil {
		steps = append(steps, "*"+tl.current.desc.String())
	}
	for _, s := range tl.upcoming {
		steps = append(steps, s.desc.String())
	}
	return strings.Join(steps, ",")
}
