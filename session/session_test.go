package session

import (
	"context"
	"testing"
	"time"

	"github.com/a-bouts/race-engine/fetch"
	"github.com/a-bouts/race-engine/latlon"
	"github.com/a-bouts/race-engine/polar"
	"github.com/a-bouts/race-engine/race"
	"github.com/a-bouts/race-engine/raster"
	"github.com/a-bouts/race-engine/wind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func line(lat, lon float64) race.Gate {
	return race.Gate{Center: latlon.LatLon{Lat: lat, Lon: lon}, Orientation: 90, LengthNm: 2}
}

func testCourse(gates ...race.Gate) *race.Course {
	return &race.Course{
		Name:       "test",
		Start:      latlon.LatLon{Lat: 9, Lon: 0},
		StartTime:  t0,
		Gates:      gates,
		FinishLine: line(12, 0),
		TimeFactor: 1,
	}
}

// ten knots whatever the wind
var flat = &polar.Table{
	TWS:   []float64{0, 40},
	TWA:   []float64{0, 180},
	Speed: [][]float64{{10, 10}, {10, 10}},
}

func easterly(t *testing.T) fetch.Fetcher {
	r := raster.New(8, 4)
	for i := range r.Channels[0] {
		r.Channels[0][i] = raster.SpeedToColor(-10)
		r.Channels[1][i] = raster.SpeedToColor(0)
	}
	data, err := raster.Encode(r)
	require.NoError(t, err)
	return fetch.Func(func(ctx context.Context, source string) ([]byte, error) {
		return data, nil
	})
}

func descriptors() []wind.Descriptor {
	return []wind.Descriptor{
		{Time: t0, SourceURL: "2024010100.f000.png"},
		{Time: t0.Add(6 * time.Hour), SourceURL: "2024010100.f006.png"},
	}
}

func newSession(t *testing.T, c *race.Course, land Mask) *Session {
	s, err := New(Config{
		Course:      c,
		Polar:       flat,
		Descriptors: descriptors(),
		TurnRate:    10,
		Tolerance:   0.5,
	}, Deps{Loader: wind.NewLoader(easterly(t), 2), Land: land})
	require.NoError(t, err)
	t.Cleanup(s.Abandon)
	return s
}

func waitWind(t *testing.T, s *Session) {
	require.Eventually(t, func() bool {
		return s.Tick(0).HasWind
	}, 2*time.Second, time.Millisecond)
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Config{Polar: flat}, Deps{Loader: wind.NewLoader(easterly(t), 1)})
	assert.Error(t, err)
	_, err = New(Config{Course: testCourse()}, Deps{Loader: wind.NewLoader(easterly(t), 1)})
	assert.Error(t, err)
	_, err = New(Config{Course: testCourse(), Polar: flat}, Deps{})
	assert.Error(t, err)
}

func TestNoWindNoSpeed(t *testing.T) {
	s, err := New(Config{Course: testCourse(), Polar: flat}, Deps{Loader: wind.NewLoader(easterly(t), 1)})
	require.NoError(t, err)
	defer s.Abandon()

	snap := s.Tick(time.Hour)
	assert.False(t, snap.HasWind)
	assert.Equal(t, 0.0, snap.BoatSpeed)
	assert.Equal(t, latlon.LatLon{Lat: 9, Lon: 0}, snap.Position)
	assert.Equal(t, t0.Add(time.Hour), snap.CourseTime)
	assert.NotEmpty(t, snap.SessionID)

	_, ok := s.RequestTack()
	assert.False(t, ok)
}

func TestGateScenario(t *testing.T) {
	s := newSession(t, testCourse(line(10, 0)), nil)
	waitWind(t, s)

	snap := s.Snapshot()
	assert.InDelta(t, -10, snap.Wind.U, 0.2)
	assert.Equal(t, 0, snap.NextGateIndex)
	assert.False(t, snap.FinishLineNext)
	assert.InDelta(t, 60, snap.GateDistanceNm, 0.1)
	assert.InDelta(t, 0, snap.GateBearing, 1e-9)

	// 10 kn due north: one degree of latitude takes about six hours
	for i := 0; i < 7; i++ {
		snap = s.Tick(time.Hour)
	}
	assert.Equal(t, 10.0, snap.BoatSpeed)
	assert.Greater(t, snap.Position.Lat, 10.0)
	assert.Equal(t, 1, snap.NextGateIndex)
	assert.False(t, snap.RaceFinished)
	assert.True(t, snap.FinishLineNext)
	assert.Less(t, snap.GateDistanceNm, 120.0)
	assert.InDelta(t, 70, snap.DistanceNm, 1e-6)

	for i := 0; i < 20 && !snap.RaceFinished; i++ {
		snap = s.Tick(time.Hour)
	}
	assert.True(t, snap.RaceFinished)
	assert.Equal(t, 2, snap.NextGateIndex)

	// no-op once finished
	after := s.Tick(time.Hour)
	assert.Equal(t, snap.Position, after.Position)
	assert.Equal(t, snap.Clock, after.Clock)
}

func TestTimeFactor(t *testing.T) {
	c := testCourse()
	c.TimeFactor = 60
	s := newSession(t, c, nil)
	waitWind(t, s)

	snap := s.Tick(time.Minute)
	assert.Equal(t, t0.Add(time.Hour), snap.CourseTime)
	assert.Equal(t, time.Minute, snap.Clock)
	assert.InDelta(t, 10, snap.DistanceNm, 1e-6)
}

func TestTackAndHeadingOverride(t *testing.T) {
	s := newSession(t, testCourse(), nil)
	waitWind(t, s)

	target, ok := s.RequestTack()
	require.True(t, ok)
	snap := s.Snapshot()
	require.NotNil(t, snap.TargetHeading)
	assert.Equal(t, target, *snap.TargetHeading)

	_, ok = s.RequestTack()
	assert.False(t, ok)

	snap = s.Tick(time.Second)
	assert.InDelta(t, 350, snap.Heading, 1e-9)

	s.SetHeading(20)
	snap = s.Snapshot()
	assert.Nil(t, snap.TargetHeading)
	assert.Equal(t, 20.0, snap.Heading)

	_, ok = s.RequestTack()
	assert.True(t, ok)
}

func TestExclusionZoneBlocks(t *testing.T) {
	c := testCourse()
	c.ExclusionZones = [][]latlon.LatLon{{
		{Lat: 9.1, Lon: -1}, {Lat: 9.1, Lon: 1}, {Lat: 9.5, Lon: 1}, {Lat: 9.5, Lon: -1},
	}}
	s := newSession(t, c, nil)
	waitWind(t, s)

	snap := s.Tick(time.Hour)
	assert.True(t, snap.Blocked)
	assert.Equal(t, latlon.LatLon{Lat: 9, Lon: 0}, snap.Position)

	s.SetHeading(180)
	snap = s.Tick(time.Hour)
	assert.False(t, snap.Blocked)
	assert.Less(t, snap.Position.Lat, 9.0)
}

type allLand struct{}

func (allLand) IsLand(p latlon.LatLon) bool { return true }

func TestLandBlocks(t *testing.T) {
	s := newSession(t, testCourse(), allLand{})
	waitWind(t, s)

	snap := s.Tick(time.Hour)
	assert.True(t, snap.Blocked)
	assert.Equal(t, 0.0, snap.DistanceNm)
}

func TestExpired(t *testing.T) {
	c := testCourse()
	c.MaxDays = 1
	s := newSession(t, c, nil)
	waitWind(t, s)
	s.SetHeading(180)

	snap := s.Tick(23 * time.Hour)
	assert.False(t, snap.Expired)
	snap = s.Tick(time.Hour)
	assert.True(t, snap.Expired)
	assert.True(t, snap.Done())

	after := s.Tick(time.Hour)
	assert.Equal(t, snap.CourseTime, after.CourseTime)
}

func TestAbandon(t *testing.T) {
	s := newSession(t, testCourse(), nil)
	s.Abandon()

	snap := s.Tick(time.Hour)
	assert.True(t, snap.Abandoned)
	assert.Equal(t, time.Duration(0), snap.Clock)
	assert.Equal(t, 0, s.MergeDescriptors(descriptors()))
}

func TestMergeDescriptors(t *testing.T) {
	s := newSession(t, testCourse(), nil)
	n := s.MergeDescriptors([]wind.Descriptor{
		{Time: t0.Add(6 * time.Hour), SourceURL: "2024010100.f006.png"},
		{Time: t0.Add(12 * time.Hour), SourceURL: "2024010106.f006.png"},
	})
	assert.Equal(t, 1, n)
}
