// Package clock provides the time sources the countdown engine runs on.
//
// Clock is the scheduling seam (periodic ticks are AfterFunc callbacks) and
// Source is the elapsed-time reading used for millisecond arithmetic. Production
// code uses RealClock plus a Source picked by SelectElapsed; tests inject a
// virtual clock that implements both.
package clock

import "time"

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// AfterFunc waits for the duration to elapse and then calls f in its own goroutine.
	// Returns a Timer that can be used to cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
	// Now returns the current wall time. Only used for timestamps, never for
	// elapsed arithmetic.
	Now() time.Time
}

// Timer represents a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the Timer from firing. Returns true if the call was stopped,
	// false if the timer has already expired or been stopped.
	Stop() bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// NewRealClock creates a new RealClock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}
