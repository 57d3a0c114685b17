package timex

import (
	"sync/atomic"
	"time"
)

// Clock yields monotonic time elapsed since boot. It is never wall-clock and
// never goes backwards.
type Clock interface {
	Now() time.Duration
}

// Monotonic is backed by the runtime monotonic clock.
type Monotonic struct{ start time.Time }

// NewMonotonic starts a clock at zero.
func NewMonotonic() *Monotonic { return &Monotonic{start: time.Now()} }

func (m *Monotonic) Now() time.Duration { return time.Since(m.start) }

// Manual is a clock moved by hand, for tests and the simulator.
type Manual struct{ ns atomic.Int64 }

func (m *Manual) Now() time.Duration { return time.Duration(m.ns.Load()) }

// Set jumps to t. Values earlier than the current time are ignored.
func (m *Manual) Set(t time.Duration) {
	for {
		cur := m.ns.Load()
		if int64(t) <= cur || m.ns.CompareAndSwap(cur, int64(t)) {
			return
		}
	}
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}
	return time.Duration(m.ns.Add(int64(d)))
}

// Since returns now-t clamped at zero.
func Since(c Clock, t time.Duration) time.Duration {
	d := c.Now() - t
	if d < 0 {
		return 0
	}
	return d
}
