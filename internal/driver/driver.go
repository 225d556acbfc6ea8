// Package driver runs the fixed-frequency control loop: read the store,
// preprocess, refresh the model, step the task machine, guard and publish.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/control"
	"github.com/san-kum/bottlecap/internal/dynamics"
	"github.com/san-kum/bottlecap/internal/model"
	"github.com/san-kum/bottlecap/internal/sensor"
	"github.com/san-kum/bottlecap/internal/task"
	"github.com/san-kum/bottlecap/internal/telemetry"
)

const shutdownTimeout = 100 * time.Millisecond

// Store is the subset of the key-value store the loop needs.
type Store interface {
	Fetch(ctx context.Context) (telemetry.Sample, error)
	Publish(ctx context.Context, p telemetry.Publication) error
	PublishTorque(ctx context.Context, tau []float64) error
}

type Timer interface {
	Wait(ctx context.Context) error
	Elapsed() time.Duration
	Period() time.Duration
}

// Tick is what observers see after each published tick.
type Tick struct {
	Count   uint64
	Elapsed time.Duration
	From    task.Phase
	Phase   task.Phase
	Changed bool
	Torque  []float64
	Guarded bool
	Theta   float64
	X       r3.Vector
	XDes    r3.Vector
	Wrench  sensor.Wrench
	Verdict control.Verdict
}

type Observer interface {
	OnTick(t Tick)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Tick)

func (f ObserverFunc) OnTick(t Tick) { f(t) }

type Driver struct {
	cfg       config.Config
	store     Store
	timer     Timer
	cache     *model.Cache
	pre       *sensor.Preprocessor
	machine   *task.Machine
	log       *zap.Logger
	observers []Observer

	// Sleep waits out the synchronization backoff.
	Sleep func(ctx context.Context, d time.Duration) error

	stop   atomic.Bool
	gains  config.Gains
	uiDone bool
	ticks  uint64
}

func New(cfg config.Config, store Store, timer Timer, cache *model.Cache, machine *task.Machine, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		cfg:     cfg,
		store:   store,
		timer:   timer,
		cache:   cache,
		pre:     sensor.New(cfg.Calibration),
		machine: machine,
		log:     log,
		gains:   cfg.Gains,
		Sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

// Stop asks the loop to exit after the current tick. Safe to call from
// any goroutine, including a signal handler.
func (d *Driver) Stop() { d.stop.Store(true) }

func (d *Driver) Stopped() bool { return d.stop.Load() }

func (d *Driver) Gains() config.Gains { return d.gains }

func (d *Driver) Ticks() uint64 { return d.ticks }

func (d *Driver) Phase() task.Phase { return d.machine.Phase() }

// HandleSignals stops the loop on SIGINT, SIGTERM or SIGABRT. The returned
// function releases the handler.
func (d *Driver) HandleSignals(ctx context.Context) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			d.log.Info("stop requested", zap.Stringer("signal", sig))
			d.Stop()
		case <-ctx.Done():
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// Run executes ticks until Stop is called, ctx is done or a fatal error
// occurs. Zero torque is always published on the way out.
func (d *Driver) Run(ctx context.Context) error {
	defer d.shutdown()

	for !d.stop.Load() {
		if werr := d.timer.Wait(ctx); werr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return werr
		}
		d.ticks++
		if err := d.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

func (d *Driver) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.store.PublishTorque(ctx, d.zero()); err != nil {
		d.log.Error("failed to zero torques on shutdown", zap.Error(err))
		return
	}
	d.log.Info("controller stopped, torques zeroed", zap.Uint64("ticks", d.ticks), zap.Stringer("phase", d.machine.Phase()))
}

func (d *Driver) zero() []float64 { return make([]float64, d.cache.DOF()) }

func (d *Driver) tick(ctx context.Context) error {
	dof := d.cache.DOF()
	syncing := d.machine.Phase() == task.Synchronizing

	sample, err := d.store.Fetch(ctx)
	if err == nil {
		err = sample.SensorErr(dof)
	}
	if err != nil {
		if !syncing {
			d.log.Error("sensor read failed, stopping controller", zap.Error(err), zap.Stringer("phase", d.machine.Phase()))
			return fmt.Errorf("read sensors: %w", err)
		}
		d.log.Warn("Waiting for the robot to publish its state...", zap.Error(err))
		return d.Sleep(ctx, d.cfg.Loop.SyncBackoff)
	}

	d.applyGains(sample.Gains)
	d.applyUIFlag(sample.UIFlag)

	wrench, err := d.pre.Process(sample.Wrench.Value)
	if err != nil {
		return fmt.Errorf("preprocess wrench: %w", err)
	}

	joints := model.JointState{Q: sample.Q.Value, DQ: sample.DQ.Value}
	var state *model.State
	if joints.IsValid() {
		if state, err = d.cache.Refresh(joints.Q, joints.DQ); err != nil {
			return err
		}
	}

	in := control.Input{
		State:   state,
		DOF:     dof,
		Wrench:  wrench,
		Gains:   d.gains,
		Task:    d.cfg.Task,
		Elapsed: d.timer.Elapsed(),
		Period:  d.timer.Period(),
	}

	var res task.Result
	if state == nil && !syncing {
		d.log.Warn("non-finite joint state, commanding zero torque", zap.Stringer("phase", d.machine.Phase()))
		res = task.Result{
			Output: control.Output{Torque: mat.NewVecDense(dof, nil), Verdict: control.Running},
			From:   d.machine.Phase(),
			Phase:  d.machine.Phase(),
		}
	} else {
		res = d.machine.Step(in, d.uiDone)
	}

	if res.Stop {
		d.stop.Store(true)
		if res.Err != nil {
			return res.Err
		}
		return nil
	}
	if res.From == task.Synchronizing && !res.Changed {
		return nil
	}

	tau := res.Output.Torque.RawVector().Data
	guarded := false
	if !dynamics.FiniteSlice(tau) {
		d.log.Debug("non-finite torque replaced by zero", zap.Stringer("phase", res.From))
		tau = d.zero()
		guarded = true
	}

	pub := telemetry.Publication{
		Torque:      tau,
		EEPosDes:    res.Output.DesiredPosition,
		Wrench:      wrench.Vector(),
		Theta:       wrench.Angle,
		Phase:       res.Phase.String(),
		Diagnostics: res.Output.Diagnostics,
		Matrices:    res.Output.Matrices,
	}
	if state != nil {
		pub.EEPos = state.X
		pub.Pivot = state.Pivot
	}
	if err := d.store.Publish(ctx, pub); err != nil {
		d.log.Error("publish failed, stopping controller", zap.Error(err))
		return err
	}

	t := Tick{
		Count:   d.ticks,
		Elapsed: in.Elapsed,
		From:    res.From,
		Phase:   res.Phase,
		Changed: res.Changed,
		Torque:  tau,
		Guarded: guarded,
		Theta:   wrench.Angle,
		X:       pub.EEPos,
		XDes:    pub.EEPosDes,
		Wrench:  wrench,
		Verdict: res.Output.Verdict,
	}
	for _, o := range d.observers {
		o.OnTick(t)
	}
	return nil
}

func (d *Driver) applyGains(reads map[string]telemetry.Read[float64]) {
	for name, r := range reads {
		switch {
		case r.OK && r.Value >= 0:
			d.gains.Set(name, r.Value)
		case r.OK:
			d.log.Warn("negative gain ignored, keeping previous value", zap.String("gain", name), zap.Float64("value", r.Value))
		case r.Malformed():
			d.log.Warn("malformed gain, keeping previous value", zap.String("gain", name), zap.Error(r.Err))
		case r.Missing():
			d.log.Debug("gain not set, keeping previous value", zap.String("gain", name))
		default:
			d.log.Warn("gain read failed, keeping previous value", zap.String("gain", name), zap.Error(r.Err))
		}
	}
}

func (d *Driver) applyUIFlag(r telemetry.Read[float64]) {
	switch {
	case r.OK:
		d.uiDone = r.Value != 0
	case errors.Is(r.Err, telemetry.ErrMalformed):
		d.log.Warn("malformed ui flag, keeping previous value", zap.Error(r.Err))
	}
}
