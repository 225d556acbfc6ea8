package metrics

import (
	"strings"
	"time"

	"github.com/san-kum/bottlecap/internal/driver"
	"github.com/san-kum/bottlecap/internal/task"
)

// PhaseChanges counts transitions and remembers when each phase was
// last entered.
type PhaseChanges struct {
	name    string
	changes int
	entered map[task.Phase]time.Duration
}

func NewPhaseChanges() *PhaseChanges {
	return &PhaseChanges{
		name:    "phase_changes",
		entered: make(map[task.Phase]time.Duration),
	}
}

func (p *PhaseChanges) Name() string {
	return p.name
}

func (p *PhaseChanges) Observe(t driver.Tick) {
	if !t.Changed {
		return
	}
	p.changes++
	p.entered[t.Phase] = t.Elapsed
}

func (p *PhaseChanges) Value() float64 {
	return float64(p.changes)
}

// Entered reports when phase was last entered.
func (p *PhaseChanges) Entered(phase task.Phase) (time.Duration, bool) {
	d, ok := p.entered[phase]
	return d, ok
}

// Details reports the last entry time of each visited phase, in seconds,
// as "entered_<phase>_s".
func (p *PhaseChanges) Details() map[string]float64 {
	out := make(map[string]float64, len(p.entered))
	for phase := task.Synchronizing; phase <= task.Invalid; phase++ {
		if d, ok := p.Entered(phase); ok {
			out["entered_"+strings.ToLower(phase.String())+"_s"] = d.Seconds()
		}
	}
	return out
}

func (p *PhaseChanges) Reset() {
	p.changes = 0
	p.entered = make(map[task.Phase]time.Duration)
}
