// Package raster decodes image encoded wind fields. Channel 0 of each
// pixel holds the u component and channel 1 the v component, both
// quantised over [-Scale, Scale] m/s.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// Scale is the largest absolute wind component (m/s) the encoding can
// represent.
const Scale = 30.0

var (
	ErrDecode      = errors.New("raster: cannot decode wind image")
	ErrOutOfBounds = errors.New("raster: position outside raster")
)

type Raster struct {
	Width    int
	Height   int
	Channels [2][]byte
}

func New(width, height int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: [2][]byte{make([]byte, width*height), make([]byte, width*height)},
	}
}

// ColorToSpeed maps a channel byte to a wind component in m/s.
func ColorToSpeed(n byte) float64 {
	return float64(n)*(Scale*2)/255 - Scale
}

// SpeedToColor is the inverse of ColorToSpeed, rounded to the nearest
// quantisation step.
func SpeedToColor(speed float64) byte {
	n := math.Round((speed + Scale) * 255 / (Scale * 2))
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return byte(n)
}

// Decode reads a PNG, JPEG, GIF or WebP image.
func Decode(data []byte) (*Raster, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}

	r := New(b.Dx(), b.Dy())
	p := 0
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				r.Channels[0][p] = row[x*4]
				r.Channels[1][p] = row[x*4+1]
				p++
			}
		}
	default:
		// Go through NRGBA so that alpha premultiplication never alters
		// the encoded bytes.
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				r.Channels[0][p] = c.R
				r.Channels[1][p] = c.G
				p++
			}
		}
	}
	return r, nil
}

// Encode writes the raster as an opaque PNG.
func Encode(r *Raster) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < r.Width*r.Height; i++ {
		img.Pix[i*4] = r.Channels[0][i]
		img.Pix[i*4+1] = r.Channels[1][i]
		img.Pix[i*4+3] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PixelSize is the angular size of a pixel in degrees.
func PixelSize(width int) float64 {
	return 360.0 / float64(width)
}

// PixelCoords converts a position into fractional pixel coordinates.
// Longitudes are remapped to [0,360) the way the source grid is stored
// and row 0 is the north pole.
func PixelCoords(lat, lon float64, width, height int) (float64, float64, error) {
	if lat > 90 || lat < -90 || math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, ErrOutOfBounds
	}
	if lon <= 0 {
		lon += 360
	}
	size := PixelSize(width)
	return lon / size, (90 - lat) / size, nil
}
