package dynamics

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// SingularTolerance is the singular value below which a direction is
// treated as uncontrollable by PseudoInverse.
const SingularTolerance = 1e-8

// PseudoInverse computes the Moore-Penrose inverse of a through a thin SVD.
// Singular values below SingularTolerance map to zero. A non-finite input
// produces an all-NaN result so the torque guard downstream can catch it.
func PseudoInverse(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()
	if !Finite(a) {
		return filled(c, r, math.NaN())
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return filled(c, r, math.NaN())
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	inv := mat.NewDiagDense(len(values), nil)
	for i, s := range values {
		if s > SingularTolerance {
			inv.SetDiag(i, 1/s)
		}
	}

	var vs, out mat.Dense
	vs.Mul(&v, inv)
	out.Mul(&vs, u.T())
	return &out
}

// TaskInertia returns pinv(J Minv J^T). Singular task directions get zero
// inertia instead of an unbounded one.
func TaskInertia(j, minv mat.Matrix) *mat.Dense {
	var jm, jmj mat.Dense
	jm.Mul(j, minv)
	jmj.Mul(&jm, j.T())
	return PseudoInverse(&jmj)
}

// Nullspace returns the dynamically consistent projector I - Jbar J with
// Jbar = Minv J^T Lambda. When parent is non-nil the result is chained as
// (I - Jbar J) parent.
func Nullspace(j, minv, parent mat.Matrix) *mat.Dense {
	_, n := j.Dims()
	lambda := TaskInertia(j, minv)

	var mjt, jbar, jbarJ mat.Dense
	mjt.Mul(minv, j.T())
	jbar.Mul(&mjt, lambda)
	jbarJ.Mul(&jbar, j)

	out := Identity(n)
	out.Sub(out, &jbarJ)
	if parent != nil {
		var chained mat.Dense
		chained.Mul(out, parent)
		return &chained
	}
	return out
}

// InverseMass inverts a symmetric positive definite mass matrix, falling
// back to the pseudo-inverse when the Cholesky factorization fails.
func InverseMass(m *mat.SymDense) *mat.Dense {
	var chol mat.Cholesky
	if chol.Factorize(m) {
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err == nil {
			return mat.DenseCopyOf(&inv)
		}
	}
	return PseudoInverse(m)
}

func Identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}

// Rows copies rows [from, to) of m.
func Rows(m mat.Matrix, from, to int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(to-from, c, nil)
	for i := from; i < to; i++ {
		for k := 0; k < c; k++ {
			out.Set(i-from, k, m.At(i, k))
		}
	}
	return out
}

// LinearRows returns the translational block of a 6xn Jacobian.
func LinearRows(j mat.Matrix) *mat.Dense { return Rows(j, 0, 3) }

// AngularRows returns the rotational block of a 6xn Jacobian.
func AngularRows(j mat.Matrix) *mat.Dense { return Rows(j, 3, 6) }

func Finite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for k := 0; k < c; k++ {
			v := m.At(i, k)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func FiniteSlice(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func filled(r, c int, v float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(r, c, data)
}

// Vec converts a 3-vector to a gonum column vector.
func Vec(v r3.Vector) *mat.VecDense {
	return mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
}

// Stack concatenates two 3-vectors into a 6-vector.
func Stack(a, b r3.Vector) *mat.VecDense {
	return mat.NewVecDense(6, []float64{a.X, a.Y, a.Z, b.X, b.Y, b.Z})
}

// R3 reads three consecutive entries of v starting at off.
func R3(v mat.Vector, off int) r3.Vector {
	return r3.Vector{X: v.AtVec(off), Y: v.AtVec(off + 1), Z: v.AtVec(off + 2)}
}

// Rotate applies a 3x3 matrix to a 3-vector.
func Rotate(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
