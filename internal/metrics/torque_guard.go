package metrics

import "github.com/san-kum/bottlecap/internal/driver"

// TorqueGuard counts ticks whose torque was non-finite and replaced by zero.
type TorqueGuard struct {
	name    string
	trips   int
	samples int
}

func NewTorqueGuard() *TorqueGuard {
	return &TorqueGuard{
		name: "torque_guard_trips",
	}
}

func (g *TorqueGuard) Name() string {
	return g.name
}

func (g *TorqueGuard) Observe(t driver.Tick) {
	g.samples++
	if t.Guarded {
		g.trips++
	}
}

func (g *TorqueGuard) Value() float64 {
	return float64(g.trips)
}

// Rate is the fraction of observed ticks that tripped the guard.
func (g *TorqueGuard) Rate() float64 {
	if g.samples == 0 {
		return 0
	}
	return float64(g.trips) / float64(g.samples)
}

func (g *TorqueGuard) Details() map[string]float64 {
	return map[string]float64{"torque_guard_rate": g.Rate()}
}

func (g *TorqueGuard) Reset() {
	g.trips = 0
	g.samples = 0
}
