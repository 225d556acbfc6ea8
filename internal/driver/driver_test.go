package driver_test

import (
	"context"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/control"
	"github.com/san-kum/bottlecap/internal/driver"
	"github.com/san-kum/bottlecap/internal/dynamics"
	"github.com/san-kum/bottlecap/internal/model"
	"github.com/san-kum/bottlecap/internal/task"
	"github.com/san-kum/bottlecap/internal/telemetry"
)

var _ = Describe("Driver", func() {
	var (
		cfg     *config.Config
		store   *fakeStore
		timer   *fakeTimer
		machine *task.Machine
		logs    *observer.ObservedLogs
		d       *driver.Driver
		sleeps  []time.Duration
		ticks   []driver.Tick
	)

	zeros := func(n int) []float64 { return make([]float64, n) }
	restWrench := func() []float64 { return []float64{0, 0, 0, 0, 0, 0} }

	build := func() {
		cache := model.NewCache(dynamics.KukaIIWA(), cfg.Task.ToolOffset.R3())
		aligner, err := control.NewAligner(cfg.Task.AlignVariant, cfg.Task.IntegralWindow)
		Expect(err).NotTo(HaveOccurred())
		core, observed := observer.New(zapcore.DebugLevel)
		logs = observed
		log := zap.New(core)
		machine = task.NewMachine(task.DeployedTable(), aligner, cfg.Task.HomeJoints(), log)
		d = driver.New(*cfg, store, timer, cache, machine, log)
		d.Sleep = func(ctx context.Context, dur time.Duration) error {
			sleeps = append(sleeps, dur)
			return nil
		}
		d.AddObserver(driver.ObserverFunc(func(t driver.Tick) { ticks = append(ticks, t) }))
	}

	stopAt := func(n int) {
		timer.onWait = func(i int) {
			if i >= n {
				d.Stop()
			}
		}
	}

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		store = &fakeStore{next: func(int) telemetry.Sample {
			return sample(zeros(7), zeros(7), restWrench())
		}}
		timer = &fakeTimer{period: time.Millisecond}
		sleeps = nil
		ticks = nil
		build()
	})

	It("publishes zero torque when stopped", func() {
		stopAt(3)
		Expect(d.Run(context.Background())).To(Succeed())
		Expect(d.Stopped()).To(BeTrue())
		Expect(d.Ticks()).To(BeEquivalentTo(3))
		Expect(store.lastTorque()).To(Equal(zeros(7)))
		Expect(logs.FilterMessage("controller stopped, torques zeroed").Len()).To(Equal(1))
	})

	It("returns quietly when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		timer.onWait = func(i int) {
			if i == 2 {
				cancel()
			}
		}
		Expect(d.Run(ctx)).To(Succeed())
		Expect(store.lastTorque()).To(Equal(zeros(7)))
	})

	Context("while synchronizing", func() {
		It("backs off until the robot publishes its state", func() {
			store.next = func(n int) telemetry.Sample {
				if n <= 3 {
					return telemetry.Sample{
						Q:      telemetry.Read[[]float64]{Err: telemetry.ErrKeyMissing},
						Gains:  map[string]telemetry.Read[float64]{},
						UIFlag: telemetry.Read[float64]{Err: telemetry.ErrKeyMissing},
					}
				}
				return sample(zeros(7), zeros(7), restWrench())
			}
			stopAt(4)

			Expect(d.Run(context.Background())).To(Succeed())
			Expect(sleeps).To(HaveLen(3))
			Expect(sleeps[0]).To(Equal(cfg.Loop.SyncBackoff))
			Expect(machine.Phase()).To(Equal(task.JointInit))
			Expect(store.pubs).To(HaveLen(1))
			Expect(store.pubs[0].Phase).To(Equal("JOINT_INIT"))
			Expect(logs.FilterMessage("Waiting for the robot to publish its state...").Len()).To(Equal(3))
		})

		It("does not publish while the joint state is non-finite", func() {
			nan := zeros(7)
			nan[3] = math.NaN()
			store.next = func(int) telemetry.Sample { return sample(nan, zeros(7), restWrench()) }
			stopAt(5)

			Expect(d.Run(context.Background())).To(Succeed())
			Expect(machine.Phase()).To(Equal(task.Synchronizing))
			Expect(store.pubs).To(BeEmpty())
			Expect(ticks).To(BeEmpty())
		})
	})

	Context("with a malformed force reading while aligning", func() {
		It("exits after publishing zero torque", func() {
			machine.Force(task.Align)
			store.next = func(int) telemetry.Sample {
				s := sample(cfg.Task.HomeJoints(), zeros(7), nil)
				s.Wrench = telemetry.Read[[]float64]{Err: errors.Wrap(telemetry.ErrMalformed, "force sensor")}
				return s
			}

			err := d.Run(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, telemetry.ErrMalformed)).To(BeTrue())
			Expect(d.Ticks()).To(BeEquivalentTo(1))
			Expect(store.pubs).To(BeEmpty())
			Expect(store.lastTorque()).To(Equal(zeros(7)))
			Expect(logs.FilterMessage("sensor read failed, stopping controller").Len()).To(Equal(1))
		})
	})

	It("stops on a store failure outside synchronization", func() {
		machine.Force(task.JointInit)
		store.fetchErr = errors.New("connection refused")

		Expect(d.Run(context.Background())).To(MatchError(ContainSubstring("connection refused")))
		Expect(store.lastTorque()).To(Equal(zeros(7)))
	})

	It("replaces a non-finite torque with zero", func() {
		machine.Force(task.JointInit)
		store.next = func(int) telemetry.Sample {
			s := sample(zeros(7), zeros(7), restWrench())
			s.Gains["kv_joint_init"] = ok(0.0)
			return s
		}
		stopAt(2)

		Expect(d.Run(context.Background())).To(Succeed())
		Expect(d.Gains().KvJointInit).To(BeZero())
		Expect(ticks).To(HaveLen(2))
		for _, t := range ticks {
			Expect(t.Guarded).To(BeTrue())
			Expect(t.Torque).To(Equal(zeros(7)))
		}
		for _, p := range store.pubs {
			Expect(dynamics.FiniteSlice(p.Torque)).To(BeTrue())
		}
	})

	It("keeps the previous gain when the store value is malformed", func() {
		machine.Force(task.JointInit)
		store.next = func(n int) telemetry.Sample {
			s := sample(zeros(7), zeros(7), restWrench())
			if n == 1 {
				s.Gains["kp_pos"] = ok(55.0)
			} else {
				s.Gains["kp_pos"] = telemetry.Read[float64]{Err: errors.Wrap(telemetry.ErrMalformed, "kp_pos")}
			}
			return s
		}
		stopAt(2)

		Expect(d.Run(context.Background())).To(Succeed())
		Expect(d.Gains().KpPos).To(Equal(55.0))
		Expect(logs.FilterMessage("malformed gain, keeping previous value").Len()).To(Equal(1))
	})

	It("ends joint init when the operator raises the flag", func() {
		machine.Force(task.JointInit)
		store.next = func(int) telemetry.Sample {
			s := sample(zeros(7), zeros(7), restWrench())
			s.UIFlag = ok(1.0)
			return s
		}
		stopAt(1)

		Expect(d.Run(context.Background())).To(Succeed())
		Expect(machine.Phase()).To(Equal(task.Align))
		Expect(ticks).To(HaveLen(1))
		Expect(ticks[0].Changed).To(BeTrue())
		Expect(ticks[0].From).To(Equal(task.JointInit))
	})

	It("commands zero torque when the joint state turns non-finite", func() {
		machine.Force(task.Align)
		nan := zeros(7)
		nan[0] = math.Inf(1)
		store.next = func(int) telemetry.Sample { return sample(nan, zeros(7), restWrench()) }
		stopAt(1)

		Expect(d.Run(context.Background())).To(Succeed())
		Expect(store.pubs).To(HaveLen(1))
		Expect(store.pubs[0].Torque).To(Equal(zeros(7)))
		Expect(machine.Phase()).To(Equal(task.Align))
	})

	It("stops with an error on an unrecognized phase", func() {
		machine.Force(task.Invalid)

		err := d.Run(context.Background())
		Expect(err).To(MatchError(task.ErrInvalidPhase))
		Expect(d.Stopped()).To(BeTrue())
		Expect(store.pubs).To(BeEmpty())
		Expect(store.lastTorque()).To(Equal(zeros(7)))
	})

	It("publishes the phase, contact angle and positions", func() {
		machine.Force(task.JointInit)
		store.next = func(int) telemetry.Sample {
			return sample(cfg.Task.HomeJoints(), zeros(7), []float64{0, 0, -2, 0, 0, 0})
		}
		stopAt(1)

		Expect(d.Run(context.Background())).To(Succeed())
		Expect(store.pubs).To(HaveLen(1))
		p := store.pubs[0]
		Expect(p.Phase).To(Equal("ALIGN"))
		Expect(p.Torque).To(HaveLen(7))
		Expect(p.Wrench).To(HaveLen(6))
		Expect(p.EEPos.Norm()).To(BeNumerically(">", 0))
		Expect(p.Theta).To(BeNumerically(">=", 0))
	})
})
