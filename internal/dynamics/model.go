// Package dynamics provides the rigid-body model capability the controller
// runs on, and the robust linear algebra used to build operational-space
// quantities from it.
//
// The controller only depends on [Model]. [Chain] is a serial-chain
// reference implementation described by Denavit-Hartenberg parameters:
//
//	chain, _ := dynamics.LoadChain("configs/kuka_iiwa.yaml")
//	_ = chain.Update(q, dq)
//	J := chain.Jacobian(r3.Vector{Z: 0.11})
//
// Models are stateful and NOT safe for concurrent use.
package dynamics

import (
	"errors"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch indicates joint vectors that do not match the model.
	ErrDimensionMismatch = errors.New("dynamics: dimension mismatch between joint state and model")

	// ErrInvalidChain indicates a chain description that cannot be used.
	ErrInvalidChain = errors.New("dynamics: invalid chain description")
)

// Model answers kinematic and dynamic queries about the control link of an
// arm at the joint state last passed to Update. Offsets are expressed in
// the control link frame.
type Model interface {
	DOF() int
	Update(q, dq []float64) error

	Position(offset r3.Vector) r3.Vector
	Rotation() *mat.Dense
	LinearVelocity(offset r3.Vector) r3.Vector
	AngularVelocity() r3.Vector

	// Jacobian is 6 x DOF with the linear rows first.
	Jacobian(offset r3.Vector) *mat.Dense
	MassMatrix() *mat.SymDense
	Gravity() *mat.VecDense
}
