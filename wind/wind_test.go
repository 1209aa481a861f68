package wind

import (
	"math"
	"testing"
	"time"

	"github.com/a-bouts/race-engine/latlon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwa(t *testing.T) {
	cases := []struct {
		heading, wind, want float64
	}{
		{0, 45, 45},
		{45, 0, -45},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, 180},
	}
	for _, c := range cases {
		if got := Twa(c.heading, c.wind); got != c.want {
			t.Errorf("Twa(%v, %v) = %v; want %v", c.heading, c.wind, got, c.want)
		}
		if got := Heading(c.want, c.wind); math.Abs(latlon.Normalize180(got-c.heading)) > 1e-9 {
			t.Errorf("Heading(%v, %v) = %v; want %v", c.want, c.wind, got, c.heading)
		}
	}
}

func TestVectorDirection(t *testing.T) {
	cases := []struct {
		name string
		w    Vector
		want float64
	}{
		{"from north", Vector{U: 0, V: -5}, 0},
		{"from east", Vector{U: -5, V: 0}, 90},
		{"from south", Vector{U: 0, V: 5}, 180},
		{"from west", Vector{U: 5, V: 0}, 270},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, c.w.Direction(), 1e-9)
			assert.InDelta(t, 5, c.w.Speed(), 1e-9)
		})
	}

	w := FromDirection(270, 5)
	assert.InDelta(t, 5, w.U, 1e-9)
	assert.InDelta(t, 0, w.V, 1e-9)
	assert.InDelta(t, 270, w.Direction(), 1e-9)
	assert.InDelta(t, 5*MsToKnots, w.Knots(), 1e-9)
}

// grid4x2 has 90 degree pixels: row 0 at 90N, row 1 at the equator.
func grid4x2(tm time.Time, u []float64) *Field {
	return &Field{
		Time:   tm,
		Width:  4,
		Height: 2,
		U:      u,
		V:      make([]float64, len(u)),
	}
}

func uniform(tm time.Time, source string, u, v float64) *Field {
	f := &Field{Time: tm, Source: source, Width: 8, Height: 4, U: make([]float64, 32), V: make([]float64, 32)}
	for i := range f.U {
		f.U[i] = u
		f.V[i] = v
	}
	return f
}

func TestFieldSampleAt(t *testing.T) {
	f := grid4x2(time.Time{}, []float64{
		0, 4, 8, 12,
		2, 6, 10, 14,
	})

	w, ok := f.SampleAt(latlon.LatLon{Lat: 45, Lon: 45})
	require.True(t, ok)
	assert.InDelta(t, 3, w.U, 1e-9)

	w, ok = f.SampleAt(latlon.LatLon{Lat: 90, Lon: 90})
	require.True(t, ok)
	assert.InDelta(t, 4, w.U, 1e-9)

	// west of the date line wraps to the last column and back to column 0
	w, ok = f.SampleAt(latlon.LatLon{Lat: 90, Lon: -45})
	require.True(t, ok)
	assert.InDelta(t, 6, w.U, 1e-9)

	// rows below the last one are clamped
	w, ok = f.SampleAt(latlon.LatLon{Lat: -60, Lon: 90})
	require.True(t, ok)
	assert.InDelta(t, 6, w.U, 1e-9)

	_, ok = f.SampleAt(latlon.LatLon{Lat: 91, Lon: 0})
	assert.False(t, ok)
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func steps(n int) []Descriptor {
	var descs []Descriptor
	for i := 0; i < n; i++ {
		tm := t0.Add(time.Duration(3*i) * time.Hour)
		descs = append(descs, Descriptor{Time: tm, SourceURL: tm.Format("2006010215") + ".f000.png"})
	}
	return descs
}

func TestTimelineAdvance(t *testing.T) {
	descs := steps(3)
	tl := NewTimeline([]Descriptor{descs[2], descs[0], descs[1]})
	require.Equal(t, 3, tl.Len())

	tl.Advance(t0.Add(4 * time.Hour))
	cur, ok := tl.Current()
	require.True(t, ok)
	assert.Equal(t, descs[1], cur)
	next, ok := tl.Next()
	require.True(t, ok)
	assert.Equal(t, descs[2], next)

	// never moves back
	tl.Advance(t0)
	cur, _ = tl.Current()
	assert.Equal(t, descs[1], cur)

	tl.Advance(t0.Add(10 * time.Hour))
	cur, _ = tl.Current()
	assert.Equal(t, descs[2], cur)
	_, ok = tl.Next()
	assert.False(t, ok)
}

func TestTimelineBeforeFirstStep(t *testing.T) {
	descs := steps(2)
	tl := NewTimeline(descs)

	tl.Advance(t0.Add(-time.Hour))
	cur, ok := tl.Current()
	require.True(t, ok)
	assert.Equal(t, descs[0], cur)
	next, _ := tl.Next()
	assert.Equal(t, descs[1], next)

	tl.Attach(descs[0], uniform(descs[0].Time, descs[0].SourceURL, 0, 0))
	tl.Attach(descs[1], uniform(descs[1].Time, descs[1].SourceURL, 10, 0))
	w, ok := tl.SampleAt(latlon.LatLon{Lat: 10, Lon: 10}, t0.Add(-time.Hour))
	require.True(t, ok)
	assert.InDelta(t, 0, w.U, 1e-9)
}

func TestTimelineBlend(t *testing.T) {
	descs := steps(2)
	tl := NewTimeline(descs)
	p := latlon.LatLon{Lat: 10, Lon: 10}

	_, ok := tl.SampleAt(p, t0)
	assert.False(t, ok)

	tl.Advance(t0)
	assert.ElementsMatch(t, descs, tl.Wanted())

	require.True(t, tl.Attach(descs[0], uniform(descs[0].Time, descs[0].SourceURL, 0, 4)))
	w, ok := tl.SampleAt(p, t0.Add(90*time.Minute))
	require.True(t, ok)
	assert.InDelta(t, 0, w.U, 1e-9)

	require.True(t, tl.Attach(descs[1], uniform(descs[1].Time, descs[1].SourceURL, 10, 4)))
	assert.Empty(t, tl.Wanted())

	w, ok = tl.SampleAt(p, t0.Add(90*time.Minute))
	require.True(t, ok)
	assert.InDelta(t, 5, w.U, 1e-9)
	assert.InDelta(t, 4, w.V, 1e-9)

	w, _ = tl.SampleAt(p, t0.Add(5*time.Hour))
	assert.InDelta(t, 10, w.U, 1e-9)
}

func TestTimelineKeepsPreviousFieldWhileLoading(t *testing.T) {
	descs := steps(3)
	tl := NewTimeline(descs)
	p := latlon.LatLon{Lat: 10, Lon: 10}

	tl.Advance(t0)
	tl.Attach(descs[0], uniform(descs[0].Time, descs[0].SourceURL, 3, 0))

	tl.Advance(t0.Add(7 * time.Hour))
	assert.False(t, tl.Loaded())
	w, ok := tl.SampleAt(p, t0.Add(7*time.Hour))
	require.True(t, ok)
	assert.InDelta(t, 3, w.U, 1e-9)

	// stale result for a step already passed
	assert.False(t, tl.Attach(descs[1], uniform(descs[1].Time, descs[1].SourceURL, 9, 0)))
}

func TestTimelineMerge(t *testing.T) {
	descs := steps(4)
	tl := NewTimeline(descs[:2])
	tl.Advance(t0.Add(4 * time.Hour))

	added := tl.Merge([]Descriptor{descs[0], descs[1], descs[3], descs[2]})
	assert.Equal(t, 2, added)
	next, _ := tl.Next()
	assert.Equal(t, descs[2], next)
	assert.Equal(t, 3, tl.Len())
}

func TestTimelineMergeNewerRun(t *testing.T) {
	descs := steps(2)
	tl := NewTimeline(descs)
	tl.Advance(t0)

	newer := Descriptor{Time: descs[1].Time, SourceURL: "runs/03/2024010103.f000.png"}
	n := tl.Merge([]Descriptor{descs[0], newer})
	assert.Equal(t, 1, n)
	next, _ := tl.Next()
	assert.Equal(t, newer, next)
	assert.Equal(t, 2, tl.Len())

	// the old run's result is no longer attachable
	assert.False(t, tl.Attach(descs[1], uniform(descs[1].Time, descs[1].SourceURL, 1, 0)))
	assert.True(t, tl.Attach(newer, uniform(newer.Time, newer.SourceURL, 1, 0)))

	// a decoded step keeps its source
	later := Descriptor{Time: descs[1].Time, SourceURL: "runs/06/2024010103.f000.png"}
	assert.Equal(t, 0, tl.Merge([]Descriptor{later}))
	next, _ = tl.Next()
	assert.Equal(t, newer, next)
}

func decodedFields(tl *Timeline) int {
	n := 0
	if tl.fallback != nil {
		n++
	}
	if tl.current != nil && tl.current.field != nil {
		n++
	}
	for _, s := range tl.upcoming {
		if s.field != nil {
			n++
		}
	}
	return n
}

func TestTimelineHoldsTwoFields(t *testing.T) {
	descs := steps(3)
	tl := NewTimeline(descs)
	tl.Advance(t0)
	tl.Attach(descs[0], uniform(descs[0].Time, descs[0].SourceURL, 1, 0))
	tl.Attach(descs[1], uniform(descs[1].Time, descs[1].SourceURL, 2, 0))
	assert.Equal(t, 2, decodedFields(tl))

	// a step inserted before the decoded next one releases it
	mid := Descriptor{Time: t0.Add(time.Hour), SourceURL: "2024010100.f001.png"}
	assert.Equal(t, 1, tl.Merge([]Descriptor{mid}))
	assert.Equal(t, 1, decodedFields(tl))
	assert.Equal(t, []Descriptor{mid}, tl.Wanted())

	// current step loading: previous field stands in for it
	tl.Advance(t0.Add(2 * time.Hour))
	assert.False(t, tl.Loaded())
	tl.Attach(descs[1], uniform(descs[1].Time, descs[1].SourceURL, 2, 0))
	assert.Equal(t, 2, decodedFields(tl))
	tl.Attach(mid, uniform(mid.Time, mid.SourceURL, 3, 0))
	assert.Equal(t, 2, decodedFields(tl))
	assert.Nil(t, tl.fallback)
}
