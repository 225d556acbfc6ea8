// Package metrics summarizes a controller run one tick at a time.
package metrics

import "github.com/san-kum/bottlecap/internal/driver"

type Metric interface {
	Name() string
	Observe(t driver.Tick)
	Value() float64
	Reset()
}

// Detailer is implemented by metrics that report extra values next to
// their headline Value.
type Detailer interface {
	Details() map[string]float64
}

// Set fans ticks out to its metrics. It is a driver.Observer.
type Set struct {
	metrics []Metric
}

func NewSet(ms ...Metric) *Set {
	return &Set{metrics: ms}
}

// Default is the set recorded with every run.
func Default() *Set {
	return NewSet(NewControlEffort(), NewTorqueGuard(), NewPhaseChanges())
}

func (s *Set) OnTick(t driver.Tick) {
	for _, m := range s.metrics {
		m.Observe(t)
	}
}

func (s *Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
		if d, ok := m.(Detailer); ok {
			for k, v := range d.Details() {
				out[k] = v
			}
		}
	}
	return out
}

func (s *Set) Reset() {
	for _, m := range s.metrics {
		m.Reset()
	}
}
