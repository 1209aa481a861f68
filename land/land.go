package land

import (
	"math"
	"os"

	"github.com/a-bouts/race-engine/latlon"
	log "github.com/sirupsen/logrus"
)

// Land is a bit packed global mask, 1 for land and 0 for sea. Rows go
// from 90S to 90N, columns from 180W eastward, one bit per step degrees.
type Land struct {
	lat0 float64
	lon0 float64
	lonN float64
	step float64
	data []byte
}

func New(step float64, data []byte) *Land {
	return &Land{
		lat0: -90.0,
		lon0: -180.0,
		lonN: 180.00 - step,
		step: step,
		data: data,
	}
}

// Load reads a mask file. The default GSHHS export uses 43200 columns.
func Load(file string, columns int) (*Land, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		log.Errorf("Error reading file '%s'", file)
		return nil, err
	}
	return New(360.0/float64(columns), b), nil
}

// IsLand check if location is land or sea. Positions outside the mask
// are sea.
func (l *Land) IsLand(p latlon.LatLon) bool {
	i := int(math.Round(p.Lat / l.step))
	j := int(math.Round(latlon.WrapLon(p.Lon) / l.step))

	i0 := int(l.lat0 / l.step)
	j0 := int(l.lon0 / l.step)
	jN := int(l.lonN / l.step)

	di := i - i0
	dj := j - j0
	nj := jN - j0 + 1
	if dj >= nj {
		dj -= nj
	}

	p2 := di*nj + dj
	pB := p2 / 8
	pb := uint(p2 % 8)
	if p2 < 0 || pB >= len(l.data) {
		return false
	}

	return ((l.data[pB] >> (7 - pb)) & 0x01) == 0x01
}
