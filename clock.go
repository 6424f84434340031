package framethrottle

import "time"

// TimeProvider is the host clock the throttle reads once per frame.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the wall clock.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// millisBetween returns b-a in fractional milliseconds.
func millisBetween(a, b time.Time) float64 {
	return float64(b.Sub(a)) / float64(time.Millisecond)
}
