package sched

import "time"

// DefaultDebounce is the minimum re-trigger interval of a button.
const DefaultDebounce = 200 * time.Millisecond

// DebouncedButton is a polling debounce: it is sampled once per loop pass and
// accepts a press when the pin reads pressed and more than minInterval has
// passed since the last accepted press. It does not latch edges, so a button
// held down fires again once every minInterval.
type DebouncedButton struct {
	minInterval time.Duration
	lastTrigger time.Duration
}

// NewDebouncedButton returns a button with the given window; zero selects
// DefaultDebounce.
func NewDebouncedButton(minInterval time.Duration) *DebouncedButton {
	if minInterval <= 0 {
		minInterval = DefaultDebounce
	}
	return &DebouncedButton{minInterval: minInterval}
}

// EdgeDetected reports an accepted press at now.
func (b *DebouncedButton) EdgeDetected(pressed bool, now time.Duration) bool {
	if !pressed || now-b.lastTrigger <= b.minInterval {
		return false
	}
	b.lastTrigger = now
	return true
}

// LastTrigger is the time of the last accepted press (zero if none).
func (b *DebouncedButton) LastTrigger() time.Duration { return b.lastTrigger }

// PressedLevel converts a raw pin level to "pressed". Buttons wired to ground
// with a pull-up are active low.
func PressedLevel(level, activeLow bool) bool {
	if activeLow {
		return !level
	}
	return level
}
