package race

import (
	"github.com/a-bouts/race-engine/latlon"
)

// inPolygon is a ray casting test in (lon, lat) space. The polygon is
// unwrapped around its first vertex.
func inPolygon(zone []latlon.LatLon, p latlon.LatLon) bool {
	if len(zone) < 3 {
		return false
	}
	ref := zone[0].Lon
	p = unwrap(p, ref)

	inside := false
	j := len(zone) - 1
	for i := range zone {
		a := unwrap(zone[i], ref)
		b := unwrap(zone[j], ref)
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) &&
			p.Lon < (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat)+a.Lon {
			inside = !inside
		}
		j = i
	}
	return inside
}

func (c *Course) InExclusionZone(p latlon.LatLon) bool {
	for _, z := range c.ExclusionZones {
		if inPolygon(z, p) {
			return true
		}
	}
	return false
}

// IceLimits bound the course to the north and to the south. Each limit
// is a polyline ordered by longitude; between MinLat and MaxLat the
// limits are not checked.
type IceLimits struct {
	North  []latlon.LatLon `json:"north" yaml:"north"`
	South  []latlon.LatLon `json:"south" yaml:"south"`
	MaxLat float64         `json:"maxLat" yaml:"maxLat"`
	MinLat float64         `json:"minLat" yaml:"minLat"`
}

// limitAt interpolates the latitude of a limit at lon.
func limitAt(limit []latlon.LatLon, lon float64) (float64, bool) {
	for i := 0; i+1 < len(limit); i++ {
		a, b := limit[i], limit[i+1]
		if a.Lon <= lon && lon <= b.Lon {
			if b.Lon == a.Lon {
				return a.Lat, true
			}
			return (lon-a.Lon)/(b.Lon-a.Lon)*(b.Lat-a.Lat) + a.Lat, true
		}
	}
	return 0, false
}

func (iceLimits *IceLimits) IsInIceLimits(p latlon.LatLon) bool {
	lon := latlon.WrapLon(p.Lon)

	if iceLimits.MinLat < p.Lat && p.Lat < iceLimits.MaxLat {
		return false
	}

	if p.Lat > 0.0 {
		lat, ok := limitAt(iceLimits.North, lon)
		return ok && p.Lat >= lat
	}

	lat, ok := limitAt(iceLimits.South, lon)
	return ok && p.Lat <= lat
}
