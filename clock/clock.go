// Package clock provides a wrapping millisecond tick source.
//
// Ticks are 32 bits wide and wrap around roughly every 49.7 days.
// Two ticks are compared by interpreting their difference as a signed
// 32-bit integer, which keeps ordering correct across the wraparound
// as long as the compared ticks are less than MaxDelay apart.
package clock

import (
	"time"

	"github.com/aristanetworks/goarista/monotime"
)

// MaxDelay is the largest distance between two ticks
// that still compares correctly.
const MaxDelay = time.Duration(1<<31-1) * time.Millisecond

// Tick is an absolute monotonic timestamp in milliseconds.
type Tick uint32

// Now returns the current system tick.
func Now() Tick {
	return FromNanos(monotime.Now())
}

// FromNanos converts monotonic nanoseconds to a tick.
func FromNanos(ns uint64) Tick {
	return Tick(ns / uint64(time.Millisecond))
}

// Add returns t+d. d is truncated to whole milliseconds.
func (t Tick) Add(d time.Duration) Tick {
	return t + Tick(int64(d/time.Millisecond))
}

// Sub returns the signed distance t-u.
func (t Tick) Sub(u Tick) time.Duration {
	return time.Duration(int32(t-u)) * time.Millisecond
}

// Before reports whether t is before u.
func (t Tick) Before(u Tick) bool {
	return int32(t-u) < 0
}

// After reports whether t is after u.
func (t Tick) After(u Tick) bool {
	return int32(t-u) > 0
}

// Compare returns -1 if a is before b, 1 if a is after b and 0 otherwise.
func Compare(a, b Tick) int {
	switch d := int32(a - b); {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}
