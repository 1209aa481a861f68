package race

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a-bouts/race-engine/latlon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ll(lat, lon float64) latlon.LatLon {
	return latlon.LatLon{Lat: lat, Lon: lon}
}

func line(lat, lon float64) Gate {
	return Gate{Center: ll(lat, lon), Orientation: 90, LengthNm: 2}
}

func course(gates ...Gate) *Course {
	return &Course{
		Name:       "test",
		Start:      ll(0, 0),
		Gates:      gates,
		FinishLine: line(20, 0),
		TimeFactor: 1,
	}
}

func TestEndpoints(t *testing.T) {
	a, b := line(10, 0).Endpoints()
	assert.InDelta(t, 10, a.Lat, 1e-12)
	assert.InDelta(t, 10, b.Lat, 1e-12)
	assert.InDelta(t, -a.Lon, b.Lon, 1e-12)
	assert.InDelta(t, 1.852/(111*0.98480775301), a.Lon, 1e-9)

	a, b = Gate{Center: ll(0, 0), Orientation: 0, LengthNm: 2}.Endpoints()
	assert.InDelta(t, 1.852/111, a.Lat, 1e-12)
	assert.InDelta(t, -1.852/111, b.Lat, 1e-12)
	assert.InDelta(t, 0, a.Lon, 1e-12)
}

func TestSegmentsIntersect(t *testing.T) {
	cases := []struct {
		name           string
		p1, p2, q1, q2 latlon.LatLon
		want           bool
	}{
		{"crossing", ll(0, 0), ll(2, 2), ll(0, 2), ll(2, 0), true},
		{"apart", ll(0, 0), ll(1, 1), ll(2, 2), ll(3, 1), false},
		{"parallel", ll(0, 0), ll(0, 2), ll(1, 0), ll(1, 2), false},
		{"endpoint on segment", ll(0, 0), ll(1, 1), ll(1, 0), ll(1, 2), true},
		{"touching endpoints", ll(0, 0), ll(1, 1), ll(1, 1), ll(2, 0), true},
		{"collinear overlap", ll(0, 0), ll(0, 2), ll(0, 1), ll(0, 3), true},
		{"collinear disjoint", ll(0, 0), ll(0, 1), ll(0, 2), ll(0, 3), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SegmentsIntersect(c.p1, c.p2, c.q1, c.q2))
			assert.Equal(t, c.want, SegmentsIntersect(c.q1, c.q2, c.p1, c.p2))
		})
	}
}

func TestCrossingScenario(t *testing.T) {
	tr := NewTracker(course(line(10, 0)))
	require.Equal(t, 0, tr.NextIndex())

	assert.True(t, tr.CheckCrossing(ll(9, 0), ll(11, 0)))
	assert.Equal(t, 1, tr.NextIndex())
	assert.False(t, tr.Finished())
}

func TestCrossingOrder(t *testing.T) {
	c := course(line(10, 0), line(5, 0))
	tr := NewTracker(c)

	// gate 1 first: ignored
	assert.False(t, tr.CheckCrossing(ll(4, 0), ll(6, 0)))
	assert.Equal(t, 0, tr.NextIndex())

	assert.True(t, tr.CheckCrossing(ll(9, 0), ll(11, 0)))
	assert.Equal(t, 1, tr.NextIndex())

	// passing gate 0 again does not skip ahead
	assert.False(t, tr.CheckCrossing(ll(11, 0), ll(9, 0)))
	assert.Equal(t, 1, tr.NextIndex())

	assert.True(t, tr.CheckCrossing(ll(6, 0), ll(4, 0)))
	assert.Equal(t, 2, tr.NextIndex())
	assert.False(t, c.HasNextGate(tr.NextIndex()))

	assert.True(t, tr.CheckCrossing(ll(19.5, 0.001), ll(20.5, 0.001)))
	assert.Equal(t, 3, tr.NextIndex())
	assert.True(t, tr.Finished())

	_, ok := tr.NextGate()
	assert.False(t, ok)
	assert.False(t, tr.CheckCrossing(ll(19.5, 0), ll(20.5, 0)))
	assert.Equal(t, 3, tr.NextIndex())
}

func TestCrossingAtGateEnd(t *testing.T) {
	g := line(10, 0)
	a, _ := g.Endpoints()
	tr := NewTracker(course(g))

	// stops exactly on the line
	assert.True(t, tr.CheckCrossing(ll(9, 0), ll(10, 0)))

	tr = NewTracker(course(g))
	assert.False(t, tr.CheckCrossing(ll(9, a.Lon+0.01), ll(11, a.Lon+0.01)))
}

func TestCrossingAntimeridian(t *testing.T) {
	g := Gate{Center: ll(0, 180), Orientation: 90, LengthNm: 2}
	tr := NewTracker(course(g))
	assert.True(t, tr.CheckCrossing(ll(-0.5, -179.995), ll(0.5, -179.995)))

	tr = NewTracker(course(g))
	assert.True(t, tr.CheckCrossing(ll(-0.5, 179.995), ll(0.5, 179.995)))
}

func TestExclusionZone(t *testing.T) {
	c := course()
	c.ExclusionZones = [][]latlon.LatLon{
		{ll(0, 0), ll(0, 10), ll(10, 10), ll(10, 0)},
		{ll(-5, 175), ll(-5, -175), ll(5, -175), ll(5, 175)},
	}

	assert.True(t, c.InExclusionZone(ll(5, 5)))
	assert.False(t, c.InExclusionZone(ll(5, 15)))
	assert.False(t, c.InExclusionZone(ll(-1, 5)))
	assert.True(t, c.InExclusionZone(ll(0, 180)))
	assert.True(t, c.InExclusionZone(ll(1, -178)))
	assert.False(t, c.InExclusionZone(ll(1, -170)))
	assert.True(t, c.IsToAvoid(ll(5, 5)))
}

func TestIceLimits(t *testing.T) {
	ice := &IceLimits{
		North:  []latlon.LatLon{ll(70, -180), ll(60, 0), ll(70, 180)},
		MaxLat: 50,
		MinLat: -50,
	}

	cases := []struct {
		p    latlon.LatLon
		want bool
	}{
		{ll(65, 0), true},
		{ll(65, -90), true},
		{ll(64, -90), false},
		{ll(40, 0), false},
		{ll(-60, 0), false},
		{ll(65, 270), true},
	}
	for _, c := range cases {
		if got := ice.IsInIceLimits(c.p); got != c.want {
			t.Errorf("IsInIceLimits(%v) = %v; want %v", c.p, got, c.want)
		}
	}
}

func TestDeadlineAndLeg(t *testing.T) {
	c := course()
	_, ok := c.Deadline()
	assert.False(t, ok)

	c.StartTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.MaxDays = 3
	d, ok := c.Deadline()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), d)

	c.TimeFactor = 60
	assert.Equal(t, c.StartTime.Add(time.Hour), c.CourseTime(time.Minute))

	c.RouteWaypoints = [][]latlon.LatLon{{ll(0, 0), ll(1, 1)}}
	assert.Len(t, c.Leg(0), 2)
	assert.Nil(t, c.Leg(1))
}

func TestValidate(t *testing.T) {
	c := course(line(10, 0))
	require.NoError(t, c.Validate())

	c.TimeFactor = 0
	assert.Error(t, c.Validate())

	c = course(Gate{Center: ll(10, 0), LengthNm: -1})
	assert.Error(t, c.Validate())

	c = course()
	c.ExclusionZones = [][]latlon.LatLon{{ll(0, 0), ll(1, 1)}}
	assert.Error(t, c.Validate())
}

const courseYAML = `
name: Route du Rhum
polar: imoca.json
startTime: 2024-11-03T13:02:00Z
start: {lat: 48.65, lon: -2.03}
startHeading: 300
timeFactor: 24
maxDays: 30
gates:
  - name: Cap Frehel
    center: {lat: 48.8, lon: -2.4}
    orientation: 0
    lengthNm: 3
finishLine:
  name: Pointe-a-Pitre
  center: {lat: 16.2, lon: -61.5}
  orientation: 90
  lengthNm: 1
exclusionZones:
  - [{lat: 49, lon: -5}, {lat: 49, lon: -4}, {lat: 50, lon: -4}]
`

func TestParseCourse(t *testing.T) {
	c, err := ParseCourse([]byte(courseYAML))
	require.NoError(t, err)
	assert.Equal(t, "Route du Rhum", c.Name)
	assert.Equal(t, "imoca.json", c.Polar)
	assert.Equal(t, time.Date(2024, 11, 3, 13, 2, 0, 0, time.UTC), c.StartTime)
	assert.Equal(t, 24.0, c.TimeFactor)
	require.Len(t, c.Gates, 1)
	assert.Equal(t, 3.0, c.Gates[0].LengthNm)
	assert.Equal(t, -61.5, c.FinishLine.Center.Lon)
	assert.Len(t, c.ExclusionZones, 1)

	js := `{"name": "json", "timeFactor": 1, "startTime": "2024-01-01T00:00:00Z", "finishLine": {"center": {"lat": 1, "lon": 2}, "orientation": 0, "lengthNm": 1}}`
	c, err = ParseCourse([]byte(js))
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name)
	assert.Empty(t, c.Gates)

	_, err = ParseCourse([]byte(`name: no time factor`))
	assert.Error(t, err)
}

func TestLoadCourse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(courseYAML), 0644))

	c, err := LoadCourse(path)
	require.NoError(t, err)
	assert.Equal(t, 30, c.MaxDays)

	_, err = LoadCourse(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
