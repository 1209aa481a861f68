package wind

import (
	"bytes"
	"fmt"
	"math"

	"github.com/nilsmagnus/grib/griblib"
)

// decodeGrib extracts the 10 m U and V components of a GRIB2 message
// set. The grid must be global, start at 90N 0E and scan west to east,
// north to south, which is how GFS publishes it.
func decodeGrib(d Descriptor, data []byte) (*Field, error) {
	messages, err := griblib.ReadMessages(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w := &Field{Time: d.Time, Source: d.SourceURL}
	for _, message := range messages {
		if message.Section0.Discipline != uint8(0) ||
			message.Section4.ProductDefinitionTemplate.ParameterCategory != uint8(2) ||
			message.Section4.ProductDefinitionTemplate.FirstSurface.Type != 103 ||
			message.Section4.ProductDefinitionTemplate.FirstSurface.Value != 10 {
			continue
		}
		grid0, ok := message.Section3.Definition.(*griblib.Grid0)
		if !ok {
			return nil, fmt.Errorf("unsupported grid definition %T", message.Section3.Definition)
		}
		lat0 := float64(grid0.La1) / 1e6
		lon0 := float64(grid0.Lo1) / 1e6
		step := float64(grid0.Di) / 1e6
		if math.Abs(lat0-90) > 1e-6 || math.Abs(lon0) > 1e-6 || math.Abs(step*float64(grid0.Ni)-360) > 1e-3 {
			return nil, fmt.Errorf("unsupported grid origin (%f,%f) step %f", lat0, lon0, step)
		}
		if len(message.Section7.Data) != int(grid0.Ni*grid0.Nj) {
			return nil, fmt.Errorf("grid is %dx%d but carries %d values", grid0.Ni, grid0.Nj, len(message.Section7.Data))
		}
		w.Width = int(grid0.Ni)
		w.Height = int(grid0.Nj)
		switch message.Section4.ProductDefinitionTemplate.ParameterNumber {
		case 2:
			w.U = message.Section7.Data
		case 3:
			w.V = message.Section7.Data
		}
	}
	if w.U == nil || w.V == nil {
		return nil, fmt.Errorf("no 10m wind in %d messages", len(messages))
	}
	if len(w.U) != len(w.V) {
		return nil, fmt.Errorf("u and v grids differ")
	}
	return w, nil
}
