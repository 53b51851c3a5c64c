// Package series keeps bounded per-instrument price history.
package series

import "autogecko-go/internal/signal"

// DefaultCapacity is the retention cap for a price window.
const DefaultCapacity = 100

// Window is a FIFO of samples capped at a fixed length. It is not safe for
// concurrent use; the session loop owns one window per instrument.
type Window struct {
	capacity int
	samples  []signal.Sample
}

// NewWindow returns an empty window. A non-positive capacity uses DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{capacity: capacity, samples: make([]signal.Sample, 0, capacity)}
}

// Append adds s at the tail, evicting from the head once the cap is exceeded.
func (w *Window) Append(s signal.Sample) {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}
	w.samples = append(w.samples, s)
}

// Len returns the number of retained samples.
func (w *Window) Len() int { return len(w.samples) }

// Cap returns the retention cap.
func (w *Window) Cap() int { return w.capacity }

// Prices returns the retained prices, oldest first.
func (w *Window) Prices() []float64 {
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Price
	}
	return out
}

// Latest returns the newest sample.
func (w *Window) Latest() (signal.Sample, bool) {
	if len(w.samples) == 0 {
		return signal.Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// Oldest returns the oldest retained sample.
func (w *Window) Oldest() (signal.Sample, bool) {
	if len(w.samples) == 0 {
		return signal.Sample{}, false
	}
	return w.samples[0], true
}
