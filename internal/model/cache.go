package model

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/dynamics"
)

// Cache refreshes a dynamics model and derives the per-tick State from it.
type Cache struct {
	model   dynamics.Model
	tool    r3.Vector
	current *State
}

func NewCache(m dynamics.Model, toolOffset r3.Vector) *Cache {
	return &Cache{model: m, tool: toolOffset}
}

func (c *Cache) DOF() int { return c.model.DOF() }

// State returns the last refreshed snapshot, or nil before the first Refresh.
func (c *Cache) State() *State { return c.current }

// Refresh updates the model with the joint state and recomputes every
// kinematic and dynamic quantity. Singular configurations yield zero task
// inertia along the lost directions rather than an error.
func (c *Cache) Refresh(q, dq []float64) (*State, error) {
	if err := c.model.Update(q, dq); err != nil {
		return nil, fmt.Errorf("refresh model: %w", err)
	}
	n := c.model.DOF()
	zero := r3.Vector{}

	s := &State{
		Q:            mat.NewVecDense(n, append([]float64(nil), q...)),
		DQ:           mat.NewVecDense(n, append([]float64(nil), dq...)),
		LinkPosition: c.model.Position(zero),
		X:            c.model.Position(c.tool),
		DX:           c.model.LinearVelocity(c.tool),
		W:            c.model.AngularVelocity(),
		R:            c.model.Rotation(),
		M:            c.model.MassMatrix(),
		G:            c.model.Gravity(),
	}

	s.JCap = c.model.Jacobian(c.tool)
	link := c.model.Jacobian(zero)
	s.Jv = dynamics.LinearRows(link)
	s.Jw = dynamics.AngularRows(link)
	s.JvCap = dynamics.LinearRows(s.JCap)

	minv := dynamics.InverseMass(s.M)

	s.NCap = dynamics.Nullspace(s.JCap, minv, nil)
	s.Nv = dynamics.Nullspace(s.Jv, minv, nil)
	s.NvCap = dynamics.Nullspace(s.JvCap, minv, nil)

	s.JwCap = mat.NewDense(3, n, nil)
	s.JwCap.Mul(s.Jw, s.NvCap)
	s.NvwCap = dynamics.Nullspace(s.JwCap, minv, s.NvCap)

	s.LambdaCap = dynamics.TaskInertia(s.JCap, minv)
	s.LambdaX = dynamics.TaskInertia(s.Jv, minv)
	s.LambdaXCap = dynamics.TaskInertia(s.JvCap, minv)
	s.LambdaRCap = dynamics.TaskInertia(s.JwCap, minv)

	s.Pivot = EstimatePivot(s.X, s.W, s.DX)

	c.current = s
	return s, nil
}
