package latlon

import "math"

const π = math.Pi

// R is the mean earth radius in meters.
const R = 6371e3

// KmPerDegree is the length of one degree of latitude used by the
// small-offset approximation.
const KmPerDegree = 111.0

// KmPerNm converts nautical miles to kilometers.
const KmPerNm = 1.852

type LatLon struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

func toRadians(a float64) float64 {
	return a * π / 180.0
}

func toDegrees(a float64) float64 {
	return a * 180.0 / π
}

// Wrap360 maps an angle into [0,360).
func Wrap360(d float64) float64 {
	if 0.0 <= d && d < 360.0 {
		return d
	}
	d = math.Mod(d, 360.0)
	if d < 0 {
		d += 360.0
	}
	if d >= 360.0 {
		d -= 360.0
	}
	return d
}

// Normalize180 maps an angle into (-180,180].
func Normalize180(d float64) float64 {
	d = Wrap360(d)
	if d > 180 {
		d -= 360
	}
	return d
}

// WrapLon maps a longitude into [-180,180).
func WrapLon(lon float64) float64 {
	return Wrap360(lon+180) - 180
}

// Offset moves p by north/east distances given in nautical miles using
// the flat small-offset approximation (1° lat ≈ 111 km, 1° lon ≈
// 111 km × cos(lat)).
func Offset(p LatLon, northNm, eastNm float64) LatLon {
	dLat := northNm * KmPerNm / KmPerDegree
	dLon := 0.0
	if c := math.Cos(toRadians(p.Lat)); c > 1e-9 {
		dLon = eastNm * KmPerNm / (KmPerDegree * c)
	}
	return LatLon{Lat: p.Lat + dLat, Lon: WrapLon(p.Lon + dLon)}
}

// DeadReckon returns the position reached after sailing distanceNm on
// bearing (degrees true) from p.
func DeadReckon(p LatLon, bearing, distanceNm float64) LatLon {
	if distanceNm == 0 {
		return p
	}
	b := toRadians(bearing)
	to := Offset(p, distanceNm*math.Cos(b), distanceNm*math.Sin(b))
	if to.Lat > 90 {
		to.Lat = 90
	} else if to.Lat < -90 {
		to.Lat = -90
	}
	return to
}
