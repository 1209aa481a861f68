package wind

import (
	"net/url"
	"path"
	"strings"

	"github.com/a-bouts/race-engine/raster"
)

func isGrib(source string) bool {
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		source = u.Path
	}
	switch strings.ToLower(path.Ext(source)) {
	case ".grb", ".grib", ".grb2", ".grib2":
		return true
	}
	return false
}

// Decode turns the bytes of a step into a Field. GRIB files go through
// the GRIB2 reader, anything else is read as a wind image.
func Decode(d Descriptor, data []byte) (*Field, error) {
	if isGrib(d.SourceURL) {
		f, err := decodeGrib(d, data)
		if err != nil {
			return nil, &DecodeError{URL: d.SourceURL, Err: err}
		}
		return f, nil
	}

	r, err := raster.Decode(data)
	if err != nil {
		return nil, &DecodeError{URL: d.SourceURL, Err: err}
	}
	return NewFieldFromRaster(d.Time, d.SourceURL, r), nil
}
