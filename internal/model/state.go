// Package model snapshots the dynamics model once per control tick.
package model

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/dynamics"
)

// JointState is the raw joint feedback of one tick.
type JointState struct {
	Q  []float64
	DQ []float64
}

func (j JointState) IsValid() bool {
	return len(j.Q) == len(j.DQ) && dynamics.FiniteSlice(j.Q) && dynamics.FiniteSlice(j.DQ)
}

func (j JointState) Clone() JointState {
	return JointState{
		Q:  append([]float64(nil), j.Q...),
		DQ: append([]float64(nil), j.DQ...),
	}
}

// State holds everything the control laws need about the arm for one tick.
// A State is never mutated after Refresh returns it.
//
// The "Cap" suffix marks quantities taken at the tool offset (the bottle
// cap) instead of the control link origin.
type State struct {
	Q  *mat.VecDense
	DQ *mat.VecDense

	LinkPosition r3.Vector
	X            r3.Vector
	DX           r3.Vector
	W            r3.Vector
	R            *mat.Dense

	JCap  *mat.Dense
	Jv    *mat.Dense
	JvCap *mat.Dense
	Jw    *mat.Dense
	JwCap *mat.Dense

	NCap   *mat.Dense
	Nv     *mat.Dense
	NvCap  *mat.Dense
	NvwCap *mat.Dense

	LambdaCap  *mat.Dense
	LambdaX    *mat.Dense
	LambdaXCap *mat.Dense
	LambdaRCap *mat.Dense

	M *mat.SymDense
	G *mat.VecDense

	Pivot r3.Vector
}

func (s *State) DOF() int { return s.Q.Len() }

// PointAt returns a point given in the control link frame in base coordinates.
func (s *State) PointAt(offset r3.Vector) r3.Vector {
	return s.LinkPosition.Add(dynamics.Rotate(s.R, offset))
}

// EstimatePivot returns x + w x v, the instantaneous pivot of the tool.
func EstimatePivot(x, w, v r3.Vector) r3.Vector {
	return x.Add(w.Cross(v))
}
