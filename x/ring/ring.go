// Package ring provides a fixed-slot ring that keeps the most recent N items.
// Writes never allocate after New; the oldest slot is overwritten when full.
package ring

// Ring is a single-goroutine last-N window over a stream of values.
type Ring[T any] struct {
	slots []T
	wr    uint64 // total items pushed (monotonic)
}

// New returns a ring with n slots. n < 1 is coerced to 1.
func New[T any](n int) *Ring[T] {
	if n < 1 {
		n = 1
	}
	return &Ring[T]{slots: make([]T, n)}
}

// Cap is the number of slots.
func (r *Ring[T]) Cap() int { return len(r.slots) }

// Len is the number of items currently retained.
func (r *Ring[T]) Len() int {
	if r.wr < uint64(len(r.slots)) {
		return int(r.wr)
	}
	return len(r.slots)
}

// Pushed is the total number of items ever pushed.
func (r *Ring[T]) Pushed() uint64 { return r.wr }

// Push stores v, overwriting the oldest item when full.
func (r *Ring[T]) Push(v T) {
	r.slots[r.wr%uint64(len(r.slots))] = v
	r.wr++
}

// Items returns the retained items oldest first, in a fresh slice.
func (r *Ring[T]) Items() []T {
	n := r.Len()
	out := make([]T, 0, n)
	start := r.wr - uint64(n)
	for i := uint64(0); i < uint64(n); i++ {
		out = append(out, r.slots[(start+i)%uint64(len(r.slots))])
	}
	return out
}

// Reset forgets all items; capacity is kept.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.slots {
		r.slots[i] = zero
	}
	r.wr = 0
}
