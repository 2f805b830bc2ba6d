// Package clock supplies the time stamped onto chat lines and accounts.
package clock

import "time"

// Clock is the source of the current time; tests substitute mocks.MockClock
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in the local time zone, so chat
// timestamps show the server's wall time
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}
