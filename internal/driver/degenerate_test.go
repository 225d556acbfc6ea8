package driver_test

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/control"
	"github.com/san-kum/bottlecap/internal/driver"
	"github.com/san-kum/bottlecap/internal/dynamics"
	"github.com/san-kum/bottlecap/internal/model"
	"github.com/san-kum/bottlecap/internal/task"
	"github.com/san-kum/bottlecap/internal/telemetry"
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

var _ = Describe("Driver with a degenerate Jacobian", func() {
	DescribeTable("publishes finite torque from every law",
		func(phase task.Phase, variant string) {
			cfg := config.DefaultConfig()
			cfg.Task.AlignVariant = variant

			aligner, err := control.NewAligner(variant, cfg.Task.IntegralWindow)
			Expect(err).NotTo(HaveOccurred())
			machine := task.NewMachine(task.DeployedTable(), aligner, cfg.Task.HomeJoints(), nil)
			machine.Force(phase)

			store := &fakeStore{next: func(int) telemetry.Sample {
				return sample(cfg.Task.HomeJoints(), make([]float64, 7), []float64{0.3, 0, -2, 0.05, 0.02, 0})
			}}
			timer := &fakeTimer{period: time.Millisecond}
			d := driver.New(*cfg, store, timer, model.NewCache(frozen{n: 7}, cfg.Task.ToolOffset.R3()), machine, nil)
			d.Sleep = func(context.Context, time.Duration) error { return nil }
			timer.onWait = func(i int) {
				if i >= 3 {
					d.Stop()
				}
			}

			var ticks []driver.Tick
			d.AddObserver(driver.ObserverFunc(func(t driver.Tick) { ticks = append(ticks, t) }))

			Expect(d.Run(context.Background())).To(Succeed())
			Expect(store.pubs).To(HaveLen(3))
			for _, p := range store.pubs {
				Expect(p.Torque).To(HaveLen(7))
				Expect(dynamics.FiniteSlice(p.Torque)).To(BeTrue())
			}
			for _, t := range ticks {
				if t.Guarded {
					Expect(t.Torque).To(Equal(make([]float64, 7)))
				}
			}
			Expect(store.lastTorque()).To(Equal(make([]float64, 7)))
		},
		Entry("joint init", task.JointInit, config.VariantForce),
		Entry("baseline align", task.Align, config.VariantBaseline),
		Entry("exponential align", task.Align, config.VariantExponential),
		Entry("simple align", task.Align, config.VariantSimple),
		Entry("force align", task.Align, config.VariantForce),
		Entry("check align", task.CheckAlign, config.VariantForce),
		Entry("rewind", task.Rewind, config.VariantForce),
		Entry("screw", task.Screw, config.VariantForce),
	)
})
