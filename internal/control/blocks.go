package control

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/dynamics"
	"github.com/san-kum/bottlecap/internal/model"
)

// SaturationScale returns min(1, limit/norm). A zero norm scales by 1.
func SaturationScale(norm, limit float64) float64 {
	return math.Min(1, limit/norm)
}

// SaturateVelocity scales v down so that its norm does not exceed limit.
func SaturateVelocity(v *mat.VecDense, limit float64) *mat.VecDense {
	out := mat.VecDenseCopyOf(v)
	out.ScaleVec(SaturationScale(mat.Norm(v, 2), limit), out)
	return out
}

// PositionPD returns -kp (x - xd) - kv (dx - dxd).
func PositionPD(x, xd, dx, dxd r3.Vector, kp, kv float64) r3.Vector {
	return x.Sub(xd).Mul(-kp).Sub(dx.Sub(dxd).Mul(kv))
}

// OrientationPD returns -kp dPhi - kv w.
func OrientationPD(dPhi, w r3.Vector, kp, kv float64) r3.Vector {
	return dPhi.Mul(-kp).Sub(w.Mul(kv))
}

// OrientationError is the moment-driven orientation error -R m.
func OrientationError(s *model.State, moment r3.Vector) r3.Vector {
	return dynamics.Rotate(s.R, moment).Mul(-1)
}

// JointDamping returns M (-kv dq).
func JointDamping(s *model.State, kv float64) *mat.VecDense {
	var ddq, f mat.VecDense
	ddq.ScaleVec(-kv, s.DQ)
	f.MulVec(s.M, &ddq)
	return &f
}

// CombinedTaskTorque controls position and orientation of the cap as one
// 6-DOF task: JCap^T LambdaCap [ddx; dw] + NCap^T f.
func CombinedTaskTorque(s *model.State, ddx, dw r3.Vector, joint *mat.VecDense) *mat.VecDense {
	var force, tau, null mat.VecDense
	force.MulVec(s.LambdaCap, dynamics.Stack(ddx, dw))
	tau.MulVec(s.JCap.T(), &force)
	null.MulVec(s.NCap.T(), joint)
	tau.AddVec(&tau, &null)
	return &tau
}

// ChainedTaskTorque controls position first and orientation within the
// position nullspace: JvCap^T LambdaXCap ddx + JwCap^T LambdaRCap dw + NvwCap^T f.
func ChainedTaskTorque(s *model.State, ddx, dw r3.Vector, joint *mat.VecDense) *mat.VecDense {
	var fx, fw, tau, rot, null mat.VecDense
	fx.MulVec(s.LambdaXCap, dynamics.Vec(ddx))
	tau.MulVec(s.JvCap.T(), &fx)
	fw.MulVec(s.LambdaRCap, dynamics.Vec(dw))
	rot.MulVec(s.JwCap.T(), &fw)
	null.MulVec(s.NvwCap.T(), joint)
	tau.AddVec(&tau, &rot)
	tau.AddVec(&tau, &null)
	return &tau
}

// PositionTaskTorque controls the cap position only:
// JvCap^T LambdaX ddx + NvCap^T f. LambdaX is the link inertia, not the
// tool-point one.
func PositionTaskTorque(s *model.State, ddx r3.Vector, joint *mat.VecDense) *mat.VecDense {
	var fx, tau, null mat.VecDense
	fx.MulVec(s.LambdaX, dynamics.Vec(ddx))
	tau.MulVec(s.JvCap.T(), &fx)
	null.MulVec(s.NvCap.T(), joint)
	tau.AddVec(&tau, &null)
	return &tau
}

// Aligned reports whether the cap sits flat and still on the bottle.
func Aligned(moment, angularVelocity r3.Vector, forceZ float64, t config.Task) bool {
	return moment.Norm() <= t.AlignMoment &&
		angularVelocity.Norm() < t.AlignAngularVelocity &&
		forceZ < t.AlignForceZ
}

// LastJointTargets returns the rewind and screw angles for a last joint
// with symmetric limit and the given safety margin.
func LastJointTargets(limit, margin float64) (rewind, screw float64) {
	return -limit + margin, limit - margin
}
