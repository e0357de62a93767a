package stci

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned when the container identifier is not the
	// format magic.
	ErrFormat = errors.New("stci: not a STCI file")

	// ErrNoFrames is returned when saving a compressed container with
	// no sub-images.
	ErrNoFrames = errors.New("stci: at least one frame is required")
)

// FormatError is returned for a container whose structure contradicts
// itself, such as both or neither of the RGB and INDEXED flags being
// set, or a sub-image range falling outside the compressed data block.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "stci: " + e.Reason
}

// UnsupportedError is returned for a container using a documented but
// unimplemented feature. It is distinct from malformed input.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("stci: %s is not supported", e.Feature)
}

// TransparencyError is returned when saving a compressed container
// from a source image containing a partially transparent pixel and no
// policy for it was chosen.
type TransparencyError struct {
	Frame int
	X, Y  int
}

func (e *TransparencyError) Error() string {
	return fmt.Sprintf("stci: semi-transparent pixel at (%d,%d) in frame %d, choose ForceTransparent or ForceOpaque", e.X, e.Y, e.Frame)
}
