// Package system provides the wall clock used for run timestamps.
package system

import "time"

// Clock returns UTC wall-clock time truncated to Precision. The run ledger
// stores microseconds, so truncating keeps logged and stored values equal.
type Clock struct {
	Precision time.Duration
}

// New creates a Clock with microsecond precision.
func New() *Clock {
	return &Clock{Precision: time.Microsecond}
}

// Now returns the current time.
func (c Clock) Now() time.Time {
	now := time.Now().UTC()
	if c.Precision > 0 {
		now = now.Truncate(c.Precision)
	}
	return now
}
