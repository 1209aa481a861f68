package polar

import (
	"fmt"
	"math"

	"github.com/a-bouts/race-engine/latlon"
)

// Model gives the boat speed in knots for a true wind speed in knots and
// a true wind angle in degrees.
type Model interface {
	SpeedAt(tws float64, twa float64) float64
}

// Table is a polar diagram. Speed[i][j] is the boat speed at TWS[i] and
// TWA[j]. Both key sets are ascending, TWA spans at most [0,180].
type Table struct {
	Label string      `json:"label"`
	TWS   []float64   `json:"tws"`
	TWA   []float64   `json:"twa"`
	Speed [][]float64 `json:"speed"`
}

func ascending(name string, keys []float64) error {
	if len(keys) == 0 {
		return fmt.Errorf("no %s keys", name)
	}
	for i, k := range keys {
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return fmt.Errorf("%s key %d is not a number", name, i)
		}
		if i > 0 && k <= keys[i-1] {
			return fmt.Errorf("%s keys are not ascending at %d (%v after %v)", name, i, k, keys[i-1])
		}
	}
	return nil
}

func (t *Table) Validate() error {
	if err := ascending("tws", t.TWS); err != nil {
		return err
	}
	if err := ascending("twa", t.TWA); err != nil {
		return err
	}
	if t.TWA[0] < 0 || t.TWA[len(t.TWA)-1] > 180 {
		return fmt.Errorf("twa keys must lie in [0,180]")
	}
	if len(t.Speed) != len(t.TWS) {
		return fmt.Errorf("%d speed rows for %d tws keys", len(t.Speed), len(t.TWS))
	}
	for i, row := range t.Speed {
		if len(row) != len(t.TWA) {
			return fmt.Errorf("speed row %d has %d values for %d twa keys", i, len(row), len(t.TWA))
		}
		for j, s := range row {
			if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
				return fmt.Errorf("invalid speed %v at tws %v twa %v", s, t.TWS[i], t.TWA[j])
			}
		}
	}
	return nil
}

// interpolationIndex brackets value in keys with a linear scan. The
// fraction is the weight of i1; it is 0 when value falls on a key or
// outside the range.
func interpolationIndex(keys []float64, value float64) (int, int, float64) {
	n := len(keys)
	if value <= keys[0] {
		return 0, 0, 0
	}
	if value >= keys[n-1] {
		return n - 1, n - 1, 0
	}

	i := 1
	for keys[i] < value {
		i++
	}
	if keys[i] == value {
		return i, i, 0
	}
	return i - 1, i, (value - keys[i-1]) / (keys[i] - keys[i-1])
}

// foldTwa maps any angle onto [0,180] using port/starboard symmetry.
func foldTwa(twa float64) float64 {
	return math.Abs(latlon.Normalize180(twa))
}

// SpeedAt interpolates the boat speed in knots. Inputs outside the table
// are clamped to its edges.
func (t *Table) SpeedAt(tws float64, twa float64) float64 {
	if math.IsNaN(tws) || math.IsNaN(twa) {
		return 0
	}

	twsIndex0, twsIndex1, twsFactor := interpolationIndex(t.TWS, tws)
	twaIndex0, twaIndex1, twaFactor := interpolationIndex(t.TWA, foldTwa(twa))

	r0 := t.Speed[twsIndex0]
	r1 := t.Speed[twsIndex1]
	s0 := r0[twaIndex0]*(1-twaFactor) + r0[twaIndex1]*twaFactor
	s1 := r1[twaIndex0]*(1-twaFactor) + r1[twaIndex1]*twaFactor

	return s0*(1-twsFactor) + s1*twsFactor
}

// TwaOf is the unsigned true wind angle in [0,180] of a boat on heading
// with the wind blowing from windDirection.
func TwaOf(heading float64, windDirection float64) float64 {
	return math.Abs(latlon.Normalize180(windDirection - heading))
}

func (t *Table) MaxSpeed() float64 {
	max := 0.0
	for _, row := range t.Speed {
		for _, s := range row {
			if s > max {
				max = s
			}
		}
	}
	return max
}

// BestVMG searches the angle giving the best velocity made good toward
// (upwind) or away from (downwind) the wind, by whole degrees.
func (t *Table) BestVMG(tws float64, upwind bool) (float64, float64) {
	bestTwa := 0.0
	bestVmg := 0.0
	for twa := 0.0; twa <= 180; twa++ {
		vmg := t.SpeedAt(tws, twa) * math.Cos(twa*math.Pi/180)
		if !upwind {
			vmg = -vmg
		}
		if vmg > bestVmg {
			bestTwa = twa
			bestVmg = vmg
		}
	}
	return bestTwa, bestVmg
}
