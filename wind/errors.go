package wind

import (
	"errors"
	"fmt"

	"github.com/a-bouts/race-engine/raster"
)

var ErrFetch = errors.New("wind fetch failed")

// FetchError is returned when the bytes of a step could not be read.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// DecodeError is returned when the bytes of a step are not a usable
// wind field.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{raster.ErrDecode, e.Err}
}
