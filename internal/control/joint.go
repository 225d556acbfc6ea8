package control

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/dynamics"
)

// Synchronize holds zero torque until the joint feedback is finite.
func Synchronize(in Input) Output {
	out := Output{Torque: zeroTorque(in.DOF), Verdict: Running}
	if in.State != nil && dynamics.FiniteSlice(in.State.Q.RawVector().Data) &&
		dynamics.FiniteSlice(in.State.DQ.RawVector().Data) {
		out.Verdict = Finished
	}
	return out
}

// JointSpaceInit drives the arm to the home configuration with a
// velocity-saturated joint PD, mapped through the mass matrix.
func JointSpaceInit(in Input) Output {
	s := in.State
	g := in.Gains

	var qErr, dqDes, dqErr, ddq, tau mat.VecDense
	qErr.SubVec(s.Q, in.Setpoint.Joints)
	dqDes.ScaleVec(-g.KpJointInit/g.KvJointInit, &qErr)
	scale := SaturationScale(mat.Norm(&dqDes, 2), in.Task.MaxVelocity)
	dqDes.ScaleVec(scale, &dqDes)
	dqErr.SubVec(s.DQ, &dqDes)
	ddq.ScaleVec(-g.KvJointInit, &dqErr)
	tau.MulVec(s.M, &ddq)

	out := Output{Torque: &tau, Verdict: Running, DesiredPosition: s.X}
	if mat.Norm(&qErr, 2) < in.Task.ToleranceInitQ && mat.Norm(s.DQ, 2) < in.Task.ToleranceInitDq {
		out.Verdict = Finished
	}
	return out
}

// Rewind turns the last joint to the negative end of its range while
// holding the cap position.
func Rewind(in Input) Output { return lastJointLaw(in, in.Setpoint.RewindTarget) }

// Screw turns the last joint to the positive end of its range while
// holding the cap position.
func Screw(in Input) Output { return lastJointLaw(in, in.Setpoint.ScrewTarget) }

func lastJointLaw(in Input, target float64) Output {
	s := in.State
	g := in.Gains
	t := in.Task
	last := s.DOF() - 1

	xDes := s.PointAt(t.ScrewOffset.R3())
	ddx := PositionPD(s.X, xDes, s.DX, in.Setpoint.DesiredVelocity, g.KpPos, g.KvPos)

	qErr := s.Q.AtVec(last) - target
	dqDes := -g.KpScrew / g.KvScrew * qErr
	dqDes *= SaturationScale(math.Abs(dqDes), t.MaxVelocity)

	var ddq, joint mat.VecDense
	ddq.ScaleVec(-g.KvJoint, s.DQ)
	ddq.SetVec(last, -g.KvScrew*(s.DQ.AtVec(last)-dqDes))
	joint.MulVec(s.M, &ddq)

	out := Output{
		Torque:          PositionTaskTorque(s, ddx, &joint),
		Verdict:         Running,
		DesiredPosition: xDes,
	}
	if math.Abs(qErr) < t.ScrewTolerance {
		out.Verdict = Finished
	}
	return out
}
