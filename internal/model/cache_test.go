package model

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/dynamics"
)

var (
	home = []float64{math.Pi / 2, -math.Pi / 6, 0, math.Pi / 3, 0, -math.Pi / 2, -math.Pi / 2}
	tool = r3.Vector{Z: 0.11}
)

// frozen is a model whose Jacobian is identically zero.
type frozen struct{ n int }

func (f frozen) DOF() int                             { return f.n }
func (f frozen) Update(q, dq []float64) error         { return nil }
func (f frozen) Position(offset r3.Vector) r3.Vector  { return offset }
func (f frozen) Rotation() *mat.Dense                 { return dynamics.Identity(3) }
func (f frozen) LinearVelocity(r3.Vector) r3.Vector   { return r3.Vector{} }
func (f frozen) AngularVelocity() r3.Vector           { return r3.Vector{} }
func (f frozen) Jacobian(offset r3.Vector) *mat.Dense { return mat.NewDense(6, f.n, nil) }
func (f frozen) Gravity() *mat.VecDense               { return mat.NewVecDense(f.n, nil) }
func (f frozen) MassMatrix() *mat.SymDense {
	m := mat.NewSymDense(f.n, nil)
	for i := 0; i < f.n; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}

func TestRefreshDimensions(t *testing.T) {
	c := NewCache(dynamics.KukaIIWA(), tool)
	if c.State() != nil {
		t.Fatal("expected no state before the first refresh")
	}

	s, err := c.Refresh(home, make([]float64, 7))
	if err != nil {
		t.Fatal(err)
	}
	if c.State() != s {
		t.Error("State should return the last snapshot")
	}

	checks := []struct {
		name string
		m    mat.Matrix
		r, c int
	}{
		{"JCap", s.JCap, 6, 7},
		{"Jv", s.Jv, 3, 7},
		{"JvCap", s.JvCap, 3, 7},
		{"Jw", s.Jw, 3, 7},
		{"JwCap", s.JwCap, 3, 7},
		{"NCap", s.NCap, 7, 7},
		{"Nv", s.Nv, 7, 7},
		{"NvCap", s.NvCap, 7, 7},
		{"NvwCap", s.NvwCap, 7, 7},
		{"LambdaCap", s.LambdaCap, 6, 6},
		{"LambdaX", s.LambdaX, 3, 3},
		{"LambdaXCap", s.LambdaXCap, 3, 3},
		{"LambdaRCap", s.LambdaRCap, 3, 3},
		{"R", s.R, 3, 3},
		{"M", s.M, 7, 7},
	}
	for _, tt := range checks {
		r, cols := tt.m.Dims()
		if r != tt.r || cols != tt.c {
			t.Errorf("%s: expected %dx%d, got %dx%d", tt.name, tt.r, tt.c, r, cols)
		}
	}
	if s.DOF() != 7 {
		t.Errorf("expected 7 DOF, got %d", s.DOF())
	}
}

func TestRefreshToolPoint(t *testing.T) {
	c := NewCache(dynamics.KukaIIWA(), tool)
	s, err := c.Refresh(home, make([]float64, 7))
	if err != nil {
		t.Fatal(err)
	}

	if s.PointAt(tool).Sub(s.X).Norm() > 1e-12 {
		t.Errorf("expected X at the tool offset, got %v vs %v", s.X, s.PointAt(tool))
	}
	if !mat.EqualApprox(s.JvCap, dynamics.Rows(s.JCap, 0, 3), 0) {
		t.Error("JvCap should be the linear rows of JCap")
	}
	if math.Abs(s.X.Sub(s.LinkPosition).Norm()-0.11) > 1e-12 {
		t.Errorf("tool should sit 0.11 from the link origin")
	}
}

func TestRefreshPivot(t *testing.T) {
	c := NewCache(dynamics.KukaIIWA(), tool)
	dq := []float64{0.1, 0, 0.2, 0, -0.1, 0.3, 0.5}
	s, err := c.Refresh(home, dq)
	if err != nil {
		t.Fatal(err)
	}
	want := s.X.Add(s.W.Cross(s.DX))
	if s.Pivot.Sub(want).Norm() > 1e-15 {
		t.Errorf("expected pivot %v, got %v", want, s.Pivot)
	}
}

func TestEstimatePivot(t *testing.T) {
	got := EstimatePivot(r3.Vector{X: 1}, r3.Vector{Z: 1}, r3.Vector{X: 1})
	want := r3.Vector{X: 1, Y: 1}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRefreshSnapshotsAreIndependent(t *testing.T) {
	c := NewCache(dynamics.KukaIIWA(), tool)
	q := append([]float64(nil), home...)
	first, err := c.Refresh(q, make([]float64, 7))
	if err != nil {
		t.Fatal(err)
	}
	q[0] = 0
	if first.Q.AtVec(0) != home[0] {
		t.Error("snapshot must not alias the caller's slice")
	}
	second, err := c.Refresh(q, make([]float64, 7))
	if err != nil {
		t.Fatal(err)
	}
	if first.X == second.X {
		t.Error("expected a new snapshot after moving joint 1")
	}
}

func TestRefreshDimensionMismatch(t *testing.T) {
	c := NewCache(dynamics.KukaIIWA(), tool)
	_, err := c.Refresh(home[:6], make([]float64, 6))
	if !errors.Is(err, dynamics.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRefreshDegenerateJacobian(t *testing.T) {
	c := NewCache(frozen{n: 7}, tool)
	s, err := c.Refresh(make([]float64, 7), make([]float64, 7))
	if err != nil {
		t.Fatal(err)
	}
	for name, m := range map[string]mat.Matrix{
		"LambdaCap":  s.LambdaCap,
		"LambdaX":    s.LambdaX,
		"LambdaXCap": s.LambdaXCap,
		"LambdaRCap": s.LambdaRCap,
	} {
		if !dynamics.Finite(m) {
			t.Errorf("%s must stay finite", name)
		}
		if mat.Norm(m, 1) != 0 {
			t.Errorf("%s should be zero for a zero Jacobian", name)
		}
	}
	if !mat.EqualApprox(s.NCap, dynamics.Identity(7), 0) {
		t.Error("nullspace of a zero Jacobian should be the identity")
	}
}

func TestJointState(t *testing.T) {
	tests := []struct {
		name  string
		state JointState
		valid bool
	}{
		{"finite", JointState{Q: []float64{0, 1}, DQ: []float64{0, 0}}, true},
		{"nan position", JointState{Q: []float64{math.NaN(), 1}, DQ: []float64{0, 0}}, false},
		{"inf velocity", JointState{Q: []float64{0, 1}, DQ: []float64{math.Inf(1), 0}}, false},
		{"length mismatch", JointState{Q: []float64{0, 1}, DQ: []float64{0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("expected %v, got %v", tt.valid, got)
			}
		})
	}

	orig := JointState{Q: []float64{1}, DQ: []float64{2}}
	clone := orig.Clone()
	clone.Q[0] = 5
	if orig.Q[0] != 1 {
		t.Error("Clone should deep copy")
	}
}
