// Package sensor turns raw 6-axis force/torque readings into corrected
// end-effector wrenches.
package sensor

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/san-kum/bottlecap/internal/config"
)

var ErrShortReading = errors.New("sensor: reading must have 6 components")

// Up is the end-effector z axis the contact angle is measured against.
var Up = r3.Vector{X: 0, Y: 0, Z: 1}

// Wrench is a bias-corrected force/moment pair in the end-effector frame.
type Wrench struct {
	Force  r3.Vector
	Moment r3.Vector
	// Angle between Force and the z axis in [0, pi]; NaN without contact.
	Angle float64
}

// Vector flattens the wrench as (Fx, Fy, Fz, Mx, My, Mz).
func (w Wrench) Vector() []float64 {
	return []float64{w.Force.X, w.Force.Y, w.Force.Z, w.Moment.X, w.Moment.Y, w.Moment.Z}
}

type Preprocessor struct {
	forceBias  r3.Vector
	momentBias r3.Vector
	rows       [3]r3.Vector
}

func New(cal config.Calibration) *Preprocessor {
	p := &Preprocessor{
		forceBias:  cal.ForceBias.R3(),
		momentBias: cal.MomentBias.R3(),
	}
	for i, row := range cal.SensorToEE {
		p.rows[i] = row.R3()
	}
	return p
}

// Process applies the bias, rotates the force into the end-effector frame
// and computes the contact angle. Moments are bias-corrected only.
func (p *Preprocessor) Process(raw []float64) (Wrench, error) {
	if len(raw) != 6 {
		return Wrench{}, fmt.Errorf("%w: got %d", ErrShortReading, len(raw))
	}
	f := r3.Vector{X: raw[0], Y: raw[1], Z: raw[2]}.Add(p.forceBias)
	m := r3.Vector{X: raw[3], Y: raw[4], Z: raw[5]}.Add(p.momentBias)
	f = r3.Vector{X: p.rows[0].Dot(f), Y: p.rows[1].Dot(f), Z: p.rows[2].Dot(f)}

	return Wrench{Force: f, Moment: m, Angle: ContactAngle(f)}, nil
}

// ContactAngle returns acos(|F.z|/|F|). A zero force yields NaN.
func ContactAngle(f r3.Vector) float64 {
	return math.Acos(math.Min(1, math.Abs(f.Dot(Up))/f.Norm()))
}
