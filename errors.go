package framethrottle

import "errors"

// Sentinel errors returned by the throttle and the surface builder.
// Callers classify failures with errors.Is.
var (
	// ErrLengthMismatch indicates pixel data whose length is not width*height*4.
	ErrLengthMismatch = errors.New("pixel data length mismatch")

	// ErrInvalidDimensions indicates a zero or unrepresentable width/height.
	ErrInvalidDimensions = errors.New("invalid surface dimensions")
)
