package dynamics

import (
	"fmt"
	"math"
	"os"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const deg = math.Pi / 180

// Link is one revolute joint and the body it moves, in standard DH form:
// Rz(theta) Tz(d) Tx(a) Rx(alpha).
type Link struct {
	Name      string     `yaml:"name"`
	D         float64    `yaml:"d"`
	A         float64    `yaml:"a"`
	AlphaDeg  float64    `yaml:"alpha_deg"`
	OffsetDeg float64    `yaml:"offset_deg"`
	LimitDeg  float64    `yaml:"limit_deg"`
	Mass      float64    `yaml:"mass"`
	COM       [3]float64 `yaml:"com"`
	Inertia   float64    `yaml:"inertia"`
	Armature  float64    `yaml:"armature"`
}

type rot3 [3][3]float64

var eye3 = rot3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (r rot3) apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

func (r rot3) mul(b rot3) rot3 {
	var out rot3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r[i][0]*b[0][j] + r[i][1]*b[1][j] + r[i][2]*b[2][j]
		}
	}
	return out
}

func (r rot3) col(j int) r3.Vector {
	return r3.Vector{X: r[0][j], Y: r[1][j], Z: r[2][j]}
}

// Chain is a serial revolute arm. The control link is the last link.
type Chain struct {
	Name         string  `yaml:"name"`
	GravityAccel float64 `yaml:"gravity"`
	Links        []Link  `yaml:"links"`

	dq      []float64
	origins []r3.Vector
	rots    []rot3
}

func LoadChain(path string) (*Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Chain{GravityAccel: 9.81}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse chain %s: %w", path, err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

// KukaIIWA returns a 7-DOF model of a KUKA LBR iiwa 7 R800.
func KukaIIWA() *Chain {
	c := &Chain{
		Name:         "kuka_iiwa",
		GravityAccel: 9.81,
		Links: []Link{
			{Name: "link1", D: 0.34, AlphaDeg: -90, LimitDeg: 170, Mass: 3.4525, COM: [3]float64{0, -0.03, 0.12}, Inertia: 0.02, Armature: 0.1},
			{Name: "link2", D: 0, AlphaDeg: 90, LimitDeg: 120, Mass: 3.4821, COM: [3]float64{0.0003, 0.059, 0.042}, Inertia: 0.02, Armature: 0.1},
			{Name: "link3", D: 0.40, AlphaDeg: 90, LimitDeg: 170, Mass: 4.05623, COM: [3]float64{0, 0.03, 0.13}, Inertia: 0.03, Armature: 0.1},
			{Name: "link4", D: 0, AlphaDeg: -90, LimitDeg: 120, Mass: 3.4822, COM: [3]float64{0, 0.067, 0.034}, Inertia: 0.02, Armature: 0.1},
			{Name: "link5", D: 0.40, AlphaDeg: -90, LimitDeg: 170, Mass: 2.1633, COM: [3]float64{0.0001, 0.021, 0.076}, Inertia: 0.01, Armature: 0.05},
			{Name: "link6", D: 0, AlphaDeg: 90, LimitDeg: 120, Mass: 2.3466, COM: [3]float64{0, 0.0006, 0.0004}, Inertia: 0.006, Armature: 0.05},
			{Name: "link7", D: 0.126, AlphaDeg: 0, LimitDeg: 175, Mass: 3.129, COM: [3]float64{0, 0, 0.02}, Inertia: 0.005, Armature: 0.05},
		},
	}
	if err := c.init(); err != nil {
		panic(err)
	}
	return c
}

func (c *Chain) init() error {
	if len(c.Links) == 0 {
		return fmt.Errorf("%w: no links", ErrInvalidChain)
	}
	for i, l := range c.Links {
		if l.Mass < 0 || l.Inertia < 0 || l.Armature < 0 {
			return fmt.Errorf("%w: link %d has negative inertial parameters", ErrInvalidChain, i)
		}
	}
	n := len(c.Links)
	c.dq = make([]float64, n)
	c.origins = make([]r3.Vector, n+1)
	c.rots = make([]rot3, n+1)
	return c.Update(make([]float64, n), make([]float64, n))
}

func (c *Chain) DOF() int { return len(c.Links) }

// Limits returns the symmetric joint limits in radians.
func (c *Chain) Limits() []float64 {
	out := make([]float64, len(c.Links))
	for i, l := range c.Links {
		out[i] = l.LimitDeg * deg
	}
	return out
}

// Update runs forward kinematics for q and stores dq for velocity queries.
func (c *Chain) Update(q, dq []float64) error {
	n := c.DOF()
	if len(q) != n || len(dq) != n {
		return fmt.Errorf("%w: got q=%d dq=%d, want %d", ErrDimensionMismatch, len(q), len(dq), n)
	}
	copy(c.dq, dq)

	c.origins[0] = r3.Vector{}
	c.rots[0] = eye3
	for i, l := range c.Links {
		st, ct := math.Sincos(q[i] + l.OffsetDeg*deg)
		sa, ca := math.Sincos(l.AlphaDeg * deg)
		local := rot3{
			{ct, -st * ca, st * sa},
			{st, ct * ca, -ct * sa},
			{0, sa, ca},
		}
		p := r3.Vector{X: l.A * ct, Y: l.A * st, Z: l.D}
		c.origins[i+1] = c.origins[i].Add(c.rots[i].apply(p))
		c.rots[i+1] = c.rots[i].mul(local)
	}
	return nil
}

func (c *Chain) Position(offset r3.Vector) r3.Vector {
	n := c.DOF()
	return c.origins[n].Add(c.rots[n].apply(offset))
}

func (c *Chain) Rotation() *mat.Dense {
	r := c.rots[c.DOF()]
	return mat.NewDense(3, 3, []float64{
		r[0][0], r[0][1], r[0][2],
		r[1][0], r[1][1], r[1][2],
		r[2][0], r[2][1], r[2][2],
	})
}

// axis is the rotation axis of joint j in the base frame.
func (c *Chain) axis(j int) r3.Vector { return c.rots[j].col(2) }

func (c *Chain) Jacobian(offset r3.Vector) *mat.Dense {
	n := c.DOF()
	p := c.Position(offset)
	jac := mat.NewDense(6, n, nil)
	for j := 0; j < n; j++ {
		z := c.axis(j)
		v := z.Cross(p.Sub(c.origins[j]))
		jac.Set(0, j, v.X)
		jac.Set(1, j, v.Y)
		jac.Set(2, j, v.Z)
		jac.Set(3, j, z.X)
		jac.Set(4, j, z.Y)
		jac.Set(5, j, z.Z)
	}
	return jac
}

func (c *Chain) LinearVelocity(offset r3.Vector) r3.Vector {
	p := c.Position(offset)
	var v r3.Vector
	for j, qd := range c.dq {
		v = v.Add(c.axis(j).Cross(p.Sub(c.origins[j])).Mul(qd))
	}
	return v
}

func (c *Chain) AngularVelocity() r3.Vector {
	var w r3.Vector
	for j, qd := range c.dq {
		w = w.Add(c.axis(j).Mul(qd))
	}
	return w
}

// com is the center of mass of link i in the base frame.
func (c *Chain) com(i int) r3.Vector {
	l := c.Links[i]
	return c.origins[i+1].Add(c.rots[i+1].apply(r3.Vector{X: l.COM[0], Y: l.COM[1], Z: l.COM[2]}))
}

// MassMatrix sums m Jv^T Jv + I Jw^T Jw over the links, plus rotor armature.
func (c *Chain) MassMatrix() *mat.SymDense {
	n := c.DOF()
	m := mat.NewSymDense(n, nil)
	for i, l := range c.Links {
		pc := c.com(i)
		for a := 0; a <= i; a++ {
			za := c.axis(a)
			va := za.Cross(pc.Sub(c.origins[a]))
			for b := a; b <= i; b++ {
				zb := c.axis(b)
				vb := zb.Cross(pc.Sub(c.origins[b]))
				m.SetSym(a, b, m.At(a, b)+l.Mass*va.Dot(vb)+l.Inertia*za.Dot(zb))
			}
		}
		m.SetSym(i, i, m.At(i, i)+l.Armature)
	}
	return m
}

// Gravity returns the joint torques that hold the arm against gravity.
func (c *Chain) Gravity() *mat.VecDense {
	n := c.DOF()
	g := mat.NewVecDense(n, nil)
	up := r3.Vector{Z: c.GravityAccel}
	for i, l := range c.Links {
		pc := c.com(i)
		for j := 0; j <= i; j++ {
			jv := c.axis(j).Cross(pc.Sub(c.origins[j]))
			g.SetVec(j, g.AtVec(j)+l.Mass*jv.Dot(up))
		}
	}
	return g
}
