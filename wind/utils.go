package wind

import (
	"math"

	"github.com/a-bouts/race-engine/latlon"
)

// Twa is the signed true wind angle in (-180,180] of a boat on heading
// with the wind blowing from wind.
func Twa(heading, wind float64) float64 {
	twa := wind - heading
	if twa <= -180 {
		twa += 360
	}
	if twa > 180 {
		twa -= 360
	}

	return twa
}

// Heading is the heading holding the signed twa in wind.
func Heading(twa, wind float64) float64 {
	heading := wind - twa
	if heading < 0 {
		heading += 360
	}
	if heading >= 360 {
		heading -= 360
	}

	return heading
}

// MsToKnots converts m/s to knots.
const MsToKnots = 1.9438444924406

// Vector is a wind sample in m/s: U positive eastward, V positive
// northward.
type Vector struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

func (w Vector) Speed() float64 {
	return math.Hypot(w.U, w.V)
}

func (w Vector) Knots() float64 {
	return w.Speed() * MsToKnots
}

// Direction is the compass direction in [0,360) the wind blows from.
func (w Vector) Direction() float64 {
	return latlon.Wrap360(math.Atan2(-w.U, -w.V) * 180 / math.Pi)
}

func (w Vector) Lerp(o Vector, h float64) Vector {
	return Vector{
		U: o.U*h + w.U*(1-h),
		V: o.V*h + w.V*(1-h),
	}
}

// FromDirection builds the vector of a wind of speed m/s blowing from
// direction degrees.
func FromDirection(direction, speed float64) Vector {
	rad := direction * math.Pi / 180
	return Vector{U: -speed * math.Sin(rad), V: -speed * math.Cos(rad)}
}
