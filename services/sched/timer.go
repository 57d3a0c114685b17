// Package sched holds the small time-driven primitives the scheduler loop is
// built from: a periodic timer, a polling debounce, and a fixed batch buffer.
// None of them read the clock; callers pass the current monotonic time in.
package sched

import "time"

// PeriodicTimer fires when at least Interval has elapsed since the last fire
// (or since start). Firing resets the reference to the firing time, so a
// late poll yields a single fire and the missed intervals are not replayed.
type PeriodicTimer struct {
	interval time.Duration
	last     time.Duration
}

// NewPeriodicTimer returns a timer whose first fire is due at start+interval.
func NewPeriodicTimer(interval, start time.Duration) *PeriodicTimer {
	return &PeriodicTimer{interval: interval, last: start}
}

func (t *PeriodicTimer) Interval() time.Duration { return t.interval }

// ShouldFire reports whether the interval has elapsed. It does not reset.
func (t *PeriodicTimer) ShouldFire(now time.Duration) bool {
	return now-t.last >= t.interval
}

// Reset makes now the new reference point.
func (t *PeriodicTimer) Reset(now time.Duration) { t.last = now }

// Poll is ShouldFire followed by Reset when it fires.
func (t *PeriodicTimer) Poll(now time.Duration) bool {
	if !t.ShouldFire(now) {
		return false
	}
	t.Reset(now)
	return true
}

// Due returns how long until the next fire; zero when already due.
func (t *PeriodicTimer) Due(now time.Duration) time.Duration {
	d := t.last + t.interval - now
	if d < 0 {
		return 0
	}
	return d
}
