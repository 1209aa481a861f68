package wind

import (
	"math"
	"time"

	"github.com/a-bouts/race-engine/latlon"
	"github.com/a-bouts/race-engine/raster"
)

// Field is one decoded forecast step. Row 0 is latitude 90, column 0 is
// longitude 0 and the grid step is 360/Width degrees. A Field is never
// modified once built.
type Field struct {
	Time   time.Time
	Source string
	Width  int
	Height int
	U      []float64
	V      []float64
}

func NewFieldFromRaster(t time.Time, source string, r *raster.Raster) *Field {
	f := &Field{
		Time:   t,
		Source: source,
		Width:  r.Width,
		Height: r.Height,
		U:      make([]float64, r.Width*r.Height),
		V:      make([]float64, r.Width*r.Height),
	}
	for i := range f.U {
		f.U[i] = raster.ColorToSpeed(r.Channels[0][i])
		f.V[i] = raster.ColorToSpeed(r.Channels[1][i])
	}
	return f
}

func floorMod(a int, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

func bilinearInterpolate(x float64, y float64, g00 []float64, g10 []float64, g01 []float64, g11 []float64) (float64, float64) {

	rx := (1 - x)
	ry := (1 - y)

	a := rx * ry
	b := x * ry
	c := rx * y
	d := x * y

	u := g00[0]*a + g10[0]*b + g01[0]*c + g11[0]*d
	v := g00[1]*a + g10[1]*b + g01[1]*c + g11[1]*d

	return u, v
}

func (f *Field) at(i, j int) []float64 {
	p := j*f.Width + i
	return []float64{f.U[p], f.V[p]}
}

// SampleAt interpolates the wind at p. Columns wrap around the date line,
// rows are clamped at the poles. ok is false outside the latitude range.
func (f *Field) SampleAt(p latlon.LatLon) (Vector, bool) {
	x, y, err := raster.PixelCoords(p.Lat, p.Lon, f.Width, f.Height)
	if err != nil {
		return Vector{}, false
	}

	x0 := math.Floor(x)
	y0 := math.Floor(y)

	i0 := floorMod(int(x0), f.Width)
	i1 := (i0 + 1) % f.Width
	j0 := f.clampRow(int(y0))
	j1 := f.clampRow(int(y0) + 1)

	u, v := bilinearInterpolate(x-x0, y-y0, f.at(i0, j0), f.at(i1, j0), f.at(i0, j1), f.at(i1, j1))
	return Vector{U: u, V: v}, true
}

func (f *Field) clampRow(j int) int {
	if j < 0 {
		return 0
	}
	if j >= f.Height {
		return f.Height - 1
	}
	return j
}
