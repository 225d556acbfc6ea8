package control

import "github.com/golang/geo/r3"

// IntegralWindow integrates a vector signal over the last N ticks with the
// trapezoidal rule. The running sum is rebuilt from the buffer every time
// the write index wraps so rounding error cannot accumulate.
type IntegralWindow struct {
	samples []r3.Vector
	idx     int
	count   int
	sum     r3.Vector
	prev    r3.Vector
	primed  bool
}

func NewIntegralWindow(size int) *IntegralWindow {
	if size < 1 {
		size = 1
	}
	return &IntegralWindow{samples: make([]r3.Vector, size)}
}

// Add integrates rate over one tick of length dt and returns the windowed sum.
// The first call uses rate as its own previous value.
func (w *IntegralWindow) Add(rate r3.Vector, dt float64) r3.Vector {
	if !w.primed {
		w.prev = rate
		w.primed = true
	}
	sample := rate.Add(w.prev).Mul(0.5 * dt)
	w.prev = rate

	w.sum = w.sum.Sub(w.samples[w.idx]).Add(sample)
	w.samples[w.idx] = sample
	w.idx = (w.idx + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
	if w.idx == 0 {
		w.resum()
	}
	return w.sum
}

func (w *IntegralWindow) resum() {
	var s r3.Vector
	for _, v := range w.samples {
		s = s.Add(v)
	}
	w.sum = s
}

func (w *IntegralWindow) Sum() r3.Vector { return w.sum }

// Len is the number of samples currently in the window.
func (w *IntegralWindow) Len() int { return w.count }

func (w *IntegralWindow) Size() int { return len(w.samples) }
