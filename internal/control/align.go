package control

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/config"
)

// Aligner is one strategy for seating the cap flat on the bottle. The
// verdict is Finished once the alignment predicate holds.
type Aligner interface {
	Name() string
	Compute(in Input) Output
}

func NewAligner(variant string, window int) (Aligner, error) {
	switch variant {
	case config.VariantBaseline:
		return Baseline{}, nil
	case config.VariantExponential:
		return NewExponential(window), nil
	case config.VariantSimple:
		return Simple{}, nil
	case config.VariantForce:
		return Force{}, nil
	}
	return nil, fmt.Errorf("%w: unknown align variant %q", config.ErrInvalid, variant)
}

func alignVerdict(in Input) Verdict {
	if Aligned(in.Wrench.Moment, in.State.W, in.Wrench.Force.Z, in.Task) {
		return Finished
	}
	return Running
}

// slidingTarget pushes the cap down and slides it sideways along
// push x moment, then shifts it by the base-frame bias.
func slidingTarget(in Input) r3.Vector {
	t := in.Task
	push := t.AlignPushOffset.R3()
	slide := push.Cross(in.Wrench.Moment).Mul(in.Gains.KpSliding)
	return in.State.PointAt(push.Add(slide)).Add(t.AlignBias.R3().Mul(in.Gains.KpBias))
}

// Baseline slides the cap with fixed orientation gains under the combined
// 6-DOF task.
type Baseline struct{}

func (Baseline) Name() string { return config.VariantBaseline }

func (Baseline) Compute(in Input) Output {
	s := in.State
	g := in.Gains

	xDes := slidingTarget(in)
	ddx := PositionPD(s.X, xDes, s.DX, in.Setpoint.DesiredVelocity, g.KpPos, g.KvPos)
	dw := OrientationPD(OrientationError(s, in.Wrench.Moment), s.W, g.KpOri, g.KvOri)

	return Output{
		Torque:          CombinedTaskTorque(s, ddx, dw, JointDamping(s, g.KvJoint)),
		Verdict:         alignVerdict(in),
		DesiredPosition: xDes,
	}
}

// Exponential blends orientation stiffness and damping by the contact
// angle: stiff and lightly damped when tilted, soft and damped when flat.
// A windowed integral of the orientation error removes the steady offset.
type Exponential struct {
	window *IntegralWindow
}

func NewExponential(window int) *Exponential {
	return &Exponential{window: NewIntegralWindow(window)}
}

func (*Exponential) Name() string { return config.VariantExponential }

func (e *Exponential) Compute(in Input) Output {
	s := in.State
	g := in.Gains
	theta := in.Wrench.Angle

	xDes := slidingTarget(in)
	ddx := PositionPD(s.X, xDes, s.DX, in.Setpoint.DesiredVelocity, g.KpPosExp, g.KvPos)

	dPhi := OrientationError(s, in.Wrench.Moment)
	integral := e.window.Add(dPhi, in.Period.Seconds())

	stiff := (1 - math.Exp(-g.ExpMoreSpeed*theta)) * g.KpOriExp
	damp := math.Exp(-g.ExpLessDamping*theta) * g.KvOriExp
	dw := dPhi.Mul(-stiff).Sub(s.W.Mul(damp)).Sub(integral.Mul(g.KiOriExp))

	return Output{
		Torque:          CombinedTaskTorque(s, ddx, dw, JointDamping(s, g.KvJoint)),
		Verdict:         alignVerdict(in),
		DesiredPosition: xDes,
		Diagnostics: map[string][]float64{
			"integral_dPhi": {integral.X, integral.Y, integral.Z},
			"dPhi":          {dPhi.X, dPhi.Y, dPhi.Z},
		},
	}
}

// Simple pushes straight down until the contact force exceeds the
// threshold, then pushes against the sensed force direction.
type Simple struct{}

func (Simple) Name() string { return config.VariantSimple }

func (Simple) Compute(in Input) Output {
	s := in.State
	g := in.Gains
	t := in.Task
	f := in.Wrench.Force

	offset := t.AlignPushOffset.R3()
	if !(f.Norm() < t.ForceThreshold) {
		offset = offset.Add(f.Normalize().Mul(-t.PushDistance))
	}
	xDes := s.PointAt(offset)

	ddx := PositionPD(s.X, xDes, s.DX, in.Setpoint.DesiredVelocity, g.KpPos, g.KvPos)
	dw := OrientationPD(OrientationError(s, in.Wrench.Moment), s.W, g.KpOri, g.KvOri)

	return Output{
		Torque:          CombinedTaskTorque(s, ddx, dw, JointDamping(s, g.KvJoint)),
		Verdict:         alignVerdict(in),
		DesiredPosition: xDes,
	}
}

// Force holds the cap at a fixed depth below the flange and lets the
// orientation task comply with the sensed moment inside the position
// nullspace.
type Force struct{}

func (Force) Name() string { return config.VariantForce }

func (Force) Compute(in Input) Output {
	s := in.State
	g := in.Gains

	xDes := s.PointAt(in.Task.ForceOffset.R3())
	ddx := PositionPD(s.X, xDes, s.DX, in.Setpoint.DesiredVelocity, g.KpPos, g.KvPos)
	dw := OrientationPD(OrientationError(s, in.Wrench.Moment), s.W, g.KpOri, g.KvOri)

	return Output{
		Torque:          ChainedTaskTorque(s, ddx, dw, JointDamping(s, g.KvJoint)),
		Verdict:         alignVerdict(in),
		DesiredPosition: xDes,
		Matrices:        map[string]mat.Matrix{"tasks::lambda_x_cap": s.LambdaXCap},
	}
}
