// Package clock abstracts time reads so step timing and retry deadlines can
// be driven by tests.
package clock

import "time"

// Clock reads the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Fixed is a Clock frozen at a point in time.
type Fixed struct {
	Time time.Time
}

// Now returns the frozen time.
func (f Fixed) Now() time.Time {
	return f.Time
}
