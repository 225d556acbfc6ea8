package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/bottlecap/internal/config"
	"github.com/san-kum/bottlecap/internal/control"
	"github.com/san-kum/bottlecap/internal/driver"
	"github.com/san-kum/bottlecap/internal/dynamics"
	"github.com/san-kum/bottlecap/internal/logging"
	"github.com/san-kum/bottlecap/internal/metrics"
	"github.com/san-kum/bottlecap/internal/model"
	"github.com/san-kum/bottlecap/internal/storage"
	"github.com/san-kum/bottlecap/internal/task"
	"github.com/san-kum/bottlecap/internal/telemetry"
	"github.com/san-kum/bottlecap/internal/timer"
)

func runController(cmd *cobra.Command, args []string) error {
	if len(args) != 3 {
		fmt.Fprintf(cmd.OutOrStdout(), "Usage: %s <path-to-world.urdf> <path-to-robot.yaml> <robot-name>\n", cmd.Root().Name())
		return nil
	}
	world, robotFile, robotName := args[0], args[1], args[2]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	chain, err := dynamics.LoadChain(robotFile)
	if err != nil {
		return fmt.Errorf("load robot: %w", err)
	}
	if n := len(cfg.Task.HomeJointsDeg); n != chain.DOF() {
		return fmt.Errorf("%w: %d home joints for a %d-joint robot", config.ErrInvalid, n, chain.DOF())
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := telemetry.Dial(ctx, cfg.Store, telemetry.NewKeys(cfg.Store, robotName), log.Named("telemetry"))
	if err != nil {
		return err
	}
	defer store.Close()

	seeded, err := store.SeedGains(ctx, cfg.Gains)
	if err != nil {
		return err
	}
	log.Info("gains seeded", zap.Strings("written", seeded))
	if err := store.ResetUIFlag(ctx); err != nil {
		return err
	}

	table, err := task.TableFor(cfg.Task.CheckAlignFinished)
	if err != nil {
		return err
	}
	aligner, err := control.NewAligner(cfg.Task.AlignVariant, cfg.Task.IntegralWindow)
	if err != nil {
		return err
	}
	machine := task.NewMachine(table, aligner, cfg.Task.HomeJoints(), log.Named("task"))
	cache := model.NewCache(chain, cfg.Task.ToolOffset.R3())

	loop := timer.NewLoop(cfg.Loop.FrequencyHz, cfg.Loop.InitPause)
	defer loop.Stop()

	d := driver.New(*cfg, store, loop, cache, machine, log.Named("driver"))
	release := d.HandleSignals(ctx)
	defer release()

	set := metrics.Default()
	d.AddObserver(set)

	var rec *storage.Recorder
	if record {
		st := storage.New(cfg.Record.Dir)
		if err := st.Init(); err != nil {
			return err
		}
		rec, err = st.Start(storage.RunMetadata{
			World:        world,
			Robot:        robotFile,
			Name:         robotName,
			FrequencyHz:  cfg.Loop.FrequencyHz,
			AlignVariant: cfg.Task.AlignVariant,
			Topology:     cfg.Task.CheckAlignFinished,
		}, cfg.Record.Every)
		if err != nil {
			return err
		}
		d.AddObserver(rec)
		log.Info("recording run", zap.String("id", rec.ID()), zap.String("dir", cfg.Record.Dir))
	}

	log.Info("controller starting",
		zap.String("robot", robotName),
		zap.Int("dof", chain.DOF()),
		zap.Int("frequency_hz", cfg.Loop.FrequencyHz),
		zap.String("align", aligner.Name()),
		zap.String("check_align_finished", cfg.Task.CheckAlignFinished))

	runErr := d.Run(ctx)

	values := set.Values()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]zap.Field, 0, len(values)+1)
	fields = append(fields, zap.Uint64("ticks", d.Ticks()))
	for _, name := range names {
		fields = append(fields, zap.Float64(name, values[name]))
	}
	log.Info("run summary", fields...)

	if rec != nil {
		if err := rec.Close(values, runErr); err != nil {
			log.Error("failed to save run", zap.Error(err))
		}
	}
	return runErr
}
