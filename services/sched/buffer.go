package sched

import (
	"envnode-go/types"
	"envnode-go/x/mathx"
)

// DefaultCapacity is the number of readings averaged into one summary.
const DefaultCapacity = 10

// SampleBuffer holds up to Cap readings in arrival order. It never
// overwrites: a full buffer rejects appends until it is cleared.
type SampleBuffer struct {
	buf       []types.Reading
	consuming bool
}

// NewSampleBuffer allocates a buffer of the given capacity (DefaultCapacity
// when n <= 0).
func NewSampleBuffer(n int) *SampleBuffer {
	return &SampleBuffer{buf: make([]types.Reading, 0, mathx.OrDefault(n, DefaultCapacity))}
}

func (b *SampleBuffer) Len() int     { return len(b.buf) }
func (b *SampleBuffer) Cap() int     { return cap(b.buf) }
func (b *SampleBuffer) IsFull() bool { return len(b.buf) == cap(b.buf) }

// Append adds r. It returns false and does nothing when the buffer is full
// or a batch is being consumed.
func (b *SampleBuffer) Append(r types.Reading) bool {
	if b.IsFull() || b.consuming {
		return false
	}
	b.buf = append(b.buf, r)
	return true
}

// Clear empties the buffer and keeps its capacity.
func (b *SampleBuffer) Clear() { b.buf = b.buf[:0] }

// Average returns the mean temperature and humidity of the held readings,
// dividing by capacity rather than by the number held. On a full buffer this
// is the plain mean; on a partial buffer the missing slots count as zeros.
// The upload path relies on this when it runs between batches.
func (b *SampleBuffer) Average() (avgT, avgH float64) {
	t, h := b.columns()
	return mathx.Mean(t, cap(b.buf)), mathx.Mean(h, cap(b.buf))
}

// AverageOccupied divides by the number of held readings instead. An empty
// buffer yields zeros.
func (b *SampleBuffer) AverageOccupied() (avgT, avgH float64) {
	t, h := b.columns()
	return mathx.Mean(t, len(b.buf)), mathx.Mean(h, len(b.buf))
}

// HasHumidity reports whether any held reading carries humidity.
func (b *SampleBuffer) HasHumidity() bool {
	for _, r := range b.buf {
		if r.HasHumidity {
			return true
		}
	}
	return false
}

// Summary is Average packaged as a types.Summary.
func (b *SampleBuffer) Summary() types.Summary {
	t, h := b.Average()
	return types.Summary{AvgTemperature: t, AvgHumidity: h, HasHumidity: b.HasHumidity()}
}

// BeginConsume marks a full batch as being turned into a summary. It returns
// false when a consumption is already in progress or the buffer is not full.
func (b *SampleBuffer) BeginConsume() bool {
	if b.consuming || !b.IsFull() {
		return false
	}
	b.consuming = true
	return true
}

// EndConsume clears the buffer and lifts the consumption guard.
func (b *SampleBuffer) EndConsume() {
	b.Clear()
	b.consuming = false
}

// Consuming reports whether a batch is in flight.
func (b *SampleBuffer) Consuming() bool { return b.consuming }

func (b *SampleBuffer) columns() (t, h []float64) {
	t = make([]float64, 0, len(b.buf))
	h = make([]float64, 0, len(b.buf))
	for _, r := range b.buf {
		t = append(t, r.Temperature)
		if r.HasHumidity {
			h = append(h, r.Humidity)
		}
	}
	return t, h
}
