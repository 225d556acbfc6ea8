package task_test

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/control"
	"github.com/san-kum/bottlecap/internal/dynamics"
	"github.com/san-kum/bottlecap/internal/model"
	"github.com/san-kum/bottlecap/internal/sensor"
	"github.com/san-kum/bottlecap/internal/task"
)

var _ = Describe("Machine", func() {
	var (
		cfg     *config.Config
		cache   *model.Cache
		logs    *observer.ObservedLogs
		machine *task.Machine
	)

	inputAt := func(q []float64) control.Input {
		s, err := cache.Refresh(q, make([]float64, len(q)))
		Expect(err).NotTo(HaveOccurred())
		return control.Input{
			State:  s,
			DOF:    len(q),
			Gains:  cfg.Gains,
			Task:   cfg.Task,
			Period: time.Millisecond,
		}
	}

	aligned := func(in control.Input) control.Input {
		s := *in.State
		s.W = r3.Vector{X: 0.005}
		in.State = &s
		f := r3.Vector{Z: -1.2}
		in.Wrench = sensor.Wrench{Force: f, Moment: r3.Vector{X: 0.05, Y: 0.02, Z: 0.01}, Angle: sensor.ContactAngle(f)}
		return in
	}

	newMachine := func(table task.Table) *task.Machine {
		aligner, err := control.NewAligner(cfg.Task.AlignVariant, cfg.Task.IntegralWindow)
		Expect(err).NotTo(HaveOccurred())
		core, observed := observer.New(zapcore.InfoLevel)
		logs = observed
		return task.NewMachine(table, aligner, cfg.Task.HomeJoints(), zap.New(core))
	}

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		cache = model.NewCache(dynamics.KukaIIWA(), cfg.Task.ToolOffset.R3())
		machine = newMachine(task.DeployedTable())
	})

	It("starts synchronizing", func() {
		Expect(machine.Phase()).To(Equal(task.Synchronizing))
	})

	Context("when synchronizing", func() {
		It("waits without a finite joint state", func() {
			res := machine.Step(control.Input{DOF: 7}, false)
			Expect(res.Changed).To(BeFalse())
			Expect(res.Phase).To(Equal(task.Synchronizing))
			Expect(mat.Norm(res.Output.Torque, 2)).To(BeZero())
		})

		It("moves to joint init once the joint state is finite", func() {
			res := machine.Step(inputAt(cfg.Task.HomeJoints()), false)
			Expect(res.Changed).To(BeTrue())
			Expect(res.From).To(Equal(task.Synchronizing))
			Expect(res.Phase).To(Equal(task.JointInit))
			Expect(logs.FilterMessage("Redis synchronized. Switching to joint space controller.").Len()).To(Equal(1))
		})
	})

	Context("in joint init", func() {
		BeforeEach(func() {
			machine.Force(task.JointInit)
		})

		It("stays while away from home", func() {
			res := machine.Step(inputAt(make([]float64, 7)), false)
			Expect(res.Changed).To(BeFalse())
			Expect(machine.Phase()).To(Equal(task.JointInit))
		})

		It("honours the operator flag", func() {
			res := machine.Step(inputAt(make([]float64, 7)), true)
			Expect(res.Changed).To(BeTrue())
			Expect(machine.Phase()).To(Equal(task.Align))
		})

		It("captures the last joint targets when leaving for align", func() {
			res := machine.Step(inputAt(cfg.Task.HomeJoints()), false)
			Expect(res.Phase).To(Equal(task.Align))

			sp := machine.Setpoint()
			Expect(sp.ScrewTarget).To(BeNumerically("~", 160*math.Pi/180, 1e-12))
			Expect(sp.RewindTarget).To(BeNumerically("~", -160*math.Pi/180, 1e-12))
		})
	})

	Context("in align", func() {
		BeforeEach(func() {
			machine.Force(task.Align)
		})

		It("moves to check align when the cap is seated", func() {
			in := aligned(inputAt(cfg.Task.HomeJoints()))
			in.Elapsed = 3 * time.Second

			res := machine.Step(in, false)
			Expect(res.Output.Verdict).To(Equal(control.Finished))
			Expect(res.Phase).To(Equal(task.CheckAlign))
			Expect(machine.Setpoint().AlignEntered).To(Equal(3 * time.Second))
		})

		It("keeps aligning while not pressing down", func() {
			in := aligned(inputAt(cfg.Task.HomeJoints()))
			in.Wrench.Force.Z = -0.2

			res := machine.Step(in, false)
			Expect(res.Changed).To(BeFalse())
			Expect(res.Output.Torque.Len()).To(Equal(7))
		})
	})

	Context("in check align", func() {
		var (
			in    control.Input
			entry task.Result
		)

		BeforeEach(func() {
			machine.Force(task.Align)
			in = aligned(inputAt(cfg.Task.HomeJoints()))
			in.Elapsed = 0
			entry = machine.Step(in, false)
			Expect(entry.Phase).To(Equal(task.CheckAlign))
		})

		It("repeats the last alignment command while dwelling", func() {
			in.Elapsed = 300 * time.Millisecond
			s := *in.State
			s.X = s.X.Add(r3.Vector{Z: 0.01})
			in.State = &s

			res := machine.Step(in, false)
			Expect(mat.EqualApprox(res.Output.Torque, entry.Output.Torque, 0)).To(BeTrue())
			Expect(res.Output.DesiredPosition).To(Equal(entry.Output.DesiredPosition))
			Expect(res.Output.Torque).NotTo(BeIdenticalTo(entry.Output.Torque))
		})

		It("keeps dwelling before the wait elapses", func() {
			in.Elapsed = 500 * time.Millisecond
			res := machine.Step(in, false)
			Expect(res.Changed).To(BeFalse())
			Expect(res.Output.Verdict).To(Equal(control.Running))
			Expect(mat.Norm(res.Output.Torque, 2)).To(BeNumerically(">", 0))
		})

		It("loops back to align in the deployed topology", func() {
			in.Elapsed = time.Second
			res := machine.Step(in, false)
			Expect(res.Output.Verdict).To(Equal(control.Finished))
			Expect(res.Phase).To(Equal(task.Align))
		})

		It("returns to align when the predicate dips", func() {
			in.Elapsed = 200 * time.Millisecond
			in.Wrench.Moment = r3.Vector{X: 0.3}
			res := machine.Step(in, false)
			Expect(res.Output.Verdict).To(Equal(control.Failed))
			Expect(res.Phase).To(Equal(task.Align))
			Expect(logs.FilterMessage("Bottle cap not aligned. Switching back to align bottle cap.").Len()).To(Equal(1))
		})
	})

	Context("with the exponential aligner", func() {
		It("does not advance the integral while checking the seat", func() {
			inMachine := control.NewExponential(cfg.Task.IntegralWindow)
			reference := control.NewExponential(cfg.Task.IntegralWindow)
			machine = task.NewMachine(task.DeployedTable(), inMachine, cfg.Task.HomeJoints(), nil)
			machine.Force(task.Align)

			in := aligned(inputAt(cfg.Task.HomeJoints()))
			Expect(machine.Step(in, false).Phase).To(Equal(task.CheckAlign))
			reference.Compute(in)

			for i := 1; i <= 3; i++ {
				in.Elapsed = time.Duration(i) * 100 * time.Millisecond
				res := machine.Step(in, false)
				Expect(res.Output.Verdict).To(Equal(control.Running))
				Expect(res.Output.Diagnostics).To(BeEmpty())
			}

			got := inMachine.Compute(in).Diagnostics["integral_dPhi"]
			want := reference.Compute(in).Diagnostics["integral_dPhi"]
			Expect(got).To(Equal(want))
			Expect(floats.Norm(got, 2)).To(BeNumerically(">", 0))
		})
	})

	Context("with the rewind topology", func() {
		BeforeEach(func() {
			machine = newMachine(task.RewindTable())
		})

		It("runs align, check, rewind and screw in order", func() {
			machine.Force(task.JointInit)
			home := cfg.Task.HomeJoints()
			Expect(machine.Step(inputAt(home), false).Phase).To(Equal(task.Align))

			in := aligned(inputAt(home))
			in.Elapsed = 10 * time.Second
			Expect(machine.Step(in, false).Phase).To(Equal(task.CheckAlign))

			in.Elapsed = 11 * time.Second
			Expect(machine.Step(in, false).Phase).To(Equal(task.Rewind))

			q := append([]float64(nil), home...)
			q[6] = machine.Setpoint().RewindTarget
			Expect(machine.Step(inputAt(q), false).Phase).To(Equal(task.Screw))

			q[6] = machine.Setpoint().ScrewTarget
			res := machine.Step(inputAt(q), false)
			Expect(res.Output.Verdict).To(Equal(control.Finished))
			Expect(res.Changed).To(BeFalse())
			Expect(machine.Phase()).To(Equal(task.Screw))
		})
	})

	Context("with an unrecognized phase", func() {
		for _, p := range []task.Phase{task.Invalid, task.Phase(42)} {
			p := p
			It("stops with zero torque from "+p.String(), func() {
				machine.Force(p)
				res := machine.Step(inputAt(cfg.Task.HomeJoints()), false)
				Expect(res.Stop).To(BeTrue())
				Expect(res.Err).To(MatchError(task.ErrInvalidPhase))
				Expect(res.Phase).To(Equal(task.Invalid))
				Expect(res.Output.Torque.Len()).To(Equal(7))
				Expect(mat.Norm(res.Output.Torque, 2)).To(BeZero())
				Expect(logs.FilterMessage("Invalid controller state. Stopping controller.").Len()).To(Equal(1))
			})
		}
	})
})
