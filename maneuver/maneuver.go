// Package maneuver decides the heading a tack or gybe resolves to and
// turns the boat toward it.
package maneuver

import (
	"math"
	"time"

	"github.com/a-bouts/race-engine/latlon"
	"github.com/a-bouts/race-engine/wind"
)

type State int

const (
	Steady State = iota
	Turning
)

func (s State) String() string {
	if s == Turning {
		return "turning"
	}
	return "steady"
}

type Kind int

const (
	Tack Kind = iota
	Gybe
)

func (k Kind) String() string {
	if k == Gybe {
		return "gybe"
	}
	return "tack"
}

// Controller holds at most one maneuver in flight. It is not safe for
// concurrent use.
type Controller struct {
	// TurnRate in degrees per second. Zero turns instantly.
	TurnRate float64
	// Tolerance in degrees under which the target is considered reached.
	Tolerance float64

	turning bool
	target  float64
	kind    Kind
}

func New(turnRate, tolerance float64) *Controller {
	return &Controller{TurnRate: turnRate, Tolerance: tolerance}
}

func (c *Controller) State() State {
	if c.turning {
		return Turning
	}
	return Steady
}

func (c *Controller) Target() (float64, bool) {
	return c.target, c.turning
}

// Kind of the last accepted maneuver.
func (c *Controller) Kind() Kind {
	return c.kind
}

// WindDirection is the compass direction the wind blows from.
func WindDirection(w wind.Vector) float64 {
	return w.Direction()
}

// Mirror flips heading across the wind axis, keeping the angle to the
// wind. Bow to wind and dead downwind give back heading.
func Mirror(heading, windDirection float64) float64 {
	return wind.Heading(-wind.Twa(heading, windDirection), windDirection)
}

// RequestTack starts a tack or gybe onto the opposite board. It is
// rejected while a maneuver is in flight. A zero wind vector is a
// separate rejection: with no wind there is no board to switch to.
func (c *Controller) RequestTack(heading float64, w wind.Vector) (float64, bool) {
	if c.turning || w.Speed() == 0 {
		return 0, false
	}

	windDirection := WindDirection(w)
	c.target = Mirror(heading, windDirection)
	c.turning = true
	c.kind = Tack
	if math.Abs(wind.Twa(heading, windDirection)) > 90 {
		c.kind = Gybe
	}

	return c.target, true
}

// Step rotates heading toward the target along the shortest arc and
// returns the new heading. The controller goes back to Steady once the
// target is within Tolerance.
func (c *Controller) Step(heading float64, dt time.Duration) float64 {
	if !c.turning {
		return heading
	}

	diff := latlon.Normalize180(c.target - heading)
	max := c.TurnRate * dt.Seconds()
	if math.Abs(diff) <= c.Tolerance || c.TurnRate <= 0 || math.Abs(diff) <= max {
		c.turning = false
		return c.target
	}

	heading = latlon.Wrap360(heading + math.Copysign(max, diff))
	if math.Abs(latlon.Normalize180(c.target-heading)) <= c.Tolerance {
		c.turning = false
		return c.target
	}
	return heading
}

// Cancel drops the maneuver in flight, after a manual heading change.
func (c *Controller) Cancel() {
	c.turning = false
}
