package control

import (
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/model"
	"github.com/san-kum/bottlecap/internal/sensor"
)

// Verdict is a law's judgement on the phase that invoked it.
type Verdict int

const (
	Running Verdict = iota
	Finished
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Setpoint carries the targets a phase works toward.
type Setpoint struct {
	Joints          *mat.VecDense
	DesiredVelocity r3.Vector

	RewindTarget float64
	ScrewTarget  float64

	// AlignEntered is the loop time at which CHECK_ALIGN was entered.
	AlignEntered time.Duration
}

type Input struct {
	// State is nil while joint feedback is not finite.
	State    *model.State
	DOF      int
	Wrench   sensor.Wrench
	Gains    config.Gains
	Task     config.Task
	Setpoint Setpoint
	Elapsed  time.Duration
	Period   time.Duration
}

type Output struct {
	Torque          *mat.VecDense
	Verdict         Verdict
	DesiredPosition r3.Vector
	// Diagnostics are extra vectors to publish, keyed by store key suffix.
	Diagnostics map[string][]float64
	// Matrices are published the same way, one row per ';'.
	Matrices map[string]mat.Matrix
}

// Law computes one tick of control.
type Law interface {
	Compute(in Input) Output
}

// LawFunc adapts a plain function to Law.
type LawFunc func(in Input) Output

func (f LawFunc) Compute(in Input) Output { return f(in) }

func zeroTorque(n int) *mat.VecDense {
	return mat.NewVecDense(n, nil)
}
