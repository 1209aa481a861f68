package race

import (
	"fmt"
	"math"

	"github.com/a-bouts/race-engine/latlon"
)

// Gate is a line to cross. Orientation is the bearing of the line
// itself: 90 is an east-west line.
type Gate struct {
	Name        string        `json:"name,omitempty" yaml:"name,omitempty"`
	Center      latlon.LatLon `json:"center" yaml:"center"`
	Orientation float64       `json:"orientation" yaml:"orientation"`
	LengthNm    float64       `json:"lengthNm" yaml:"lengthNm"`
}

func (g Gate) validate() error {
	if g.LengthNm <= 0 {
		return fmt.Errorf("length must be positive, got %v", g.LengthNm)
	}
	if g.Center.Lat < -90 || g.Center.Lat > 90 {
		return fmt.Errorf("center latitude %v out of range", g.Center.Lat)
	}
	return nil
}

// Endpoints lie LengthNm/2 either side of the center along the gate
// line.
func (g Gate) Endpoints() (latlon.LatLon, latlon.LatLon) {
	half := g.LengthNm / 2
	rad := g.Orientation * math.Pi / 180
	north := half * math.Cos(rad)
	east := half * math.Sin(rad)

	return latlon.Offset(g.Center, north, east), latlon.Offset(g.Center, -north, -east)
}

// unwrap moves p to the longitude closest to ref so that segments near
// the antimeridian stay short.
func unwrap(p latlon.LatLon, ref float64) latlon.LatLon {
	return latlon.LatLon{Lat: p.Lat, Lon: ref + latlon.Normalize180(p.Lon-ref)}
}

// Crossed reports whether the move from prev to next crosses the gate
// line.
func (g Gate) Crossed(prev, next latlon.LatLon) bool {
	a, b := g.Endpoints()
	ref := g.Center.Lon
	return SegmentsIntersect(unwrap(prev, ref), unwrap(next, ref), unwrap(a, ref), unwrap(b, ref))
}

func cross(o, a, b latlon.LatLon) float64 {
	return (a.Lon-o.Lon)*(b.Lat-o.Lat) - (a.Lat-o.Lat)*(b.Lon-o.Lon)
}

// onSegment reports whether q, known to be collinear with p and r, lies
// in their bounding box.
func onSegment(p, q, r latlon.LatLon) bool {
	return math.Min(p.Lon, r.Lon) <= q.Lon && q.Lon <= math.Max(p.Lon, r.Lon) &&
		math.Min(p.Lat, r.Lat) <= q.Lat && q.Lat <= math.Max(p.Lat, r.Lat)
}

// SegmentsIntersect tests the planar segments p1p2 and q1q2 in
// (lon, lat) space, touching endpoints included.
func SegmentsIntersect(p1, p2, q1, q2 latlon.LatLon) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, p1, q2):
		return true
	case d2 == 0 && onSegment(q1, p2, q2):
		return true
	case d3 == 0 && onSegment(p1, q1, p2):
		return true
	case d4 == 0 && onSegment(p1, q2, p2):
		return true
	}
	return false
}

// Tracker follows the progress of one boat along a course. Gates are
// crossed in order, then the finish line.
type Tracker struct {
	course *Course
	next   int
}

func NewTracker(c *Course) *Tracker {
	return &Tracker{course: c}
}

// NextIndex is in [0, len(Gates)] while racing; len(Gates) designates the
// finish line and len(Gates)+1 a finished race.
func (t *Tracker) NextIndex() int {
	return t.next
}

func (t *Tracker) Finished() bool {
	return t.next > len(t.course.Gates)
}

func (t *Tracker) NextGate() (Gate, bool) {
	return t.course.GateAt(t.next)
}

// CheckCrossing tests the move against the next required line only and
// advances by one when it is crossed.
func (t *Tracker) CheckCrossing(prev, next latlon.LatLon) bool {
	g, ok := t.NextGate()
	if !ok {
		return false
	}
	if !g.Crossed(prev, next) {
		return false
	}
	t.next = t.course.Reached(t.next)
	return true
}
