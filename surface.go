package framethrottle

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
)

// BytesPerPixel is the size of one RGBA group.
const BytesPerPixel = 4

// frameSize returns width*height*4 as an int, or false when either dimension
// is zero or the product does not fit in an int.
func frameSize(width, height uint32) (int, bool) {
	if width == 0 || height == 0 {
		return 0, false
	}
	pixels := uint64(width) * uint64(height)
	if pixels > uint64(math.MaxInt)/BytesPerPixel {
		return 0, false
	}
	return int(pixels) * BytesPerPixel, true
}

// BuildSurface copies pix into a freshly allocated non-premultiplied RGBA
// image of the given size. Arguments follow the (data, width, height) order;
// the height is explicit rather than derived from the row stride.
//
// The returned surface never shares storage with pix.
func BuildSurface(pix []byte, width, height uint32) (*image.NRGBA, error) {
	size, ok := frameSize(width, height)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "BuildSurface",
			"width":    width,
			"height":   height,
		}).Warn("Rejecting surface with invalid dimensions")
		return nil, fmt.Errorf("build surface %dx%d: %w", width, height, ErrInvalidDimensions)
	}
	if len(pix) != size {
		logrus.WithFields(logrus.Fields{
			"function": "BuildSurface",
			"expected": size,
			"actual":   len(pix),
		}).Warn("Rejecting surface with mismatched pixel data")
		return nil, fmt.Errorf("build surface %dx%d: expected %d bytes, got %d: %w",
			width, height, size, len(pix), ErrLengthMismatch)
	}

	surface := &image.NRGBA{
		Pix:    make([]byte, size),
		Stride: int(width) * BytesPerPixel,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}
	copy(surface.Pix, pix)
	return surface, nil
}
