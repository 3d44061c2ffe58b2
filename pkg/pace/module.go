// Package pace bounds how often local state reaches the network. It provides
// a trailing-edge Debouncer and an adaptive Throttler, both driven through a
// Clock capability so tests can run them without real timers.
package pace

import (
	"time"
)

// Timer is the cancellable handle returned by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Clock is the only source of time the pacing types consult.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock is the Clock used outside of tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

var _ Clock = SystemClock{}
