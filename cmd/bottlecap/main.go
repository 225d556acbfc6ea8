package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/bottlecap/internal/config"
)

var (
	configFile string
	preset     string
	record     bool
	dataDir    string
	pngDir     string
	pollEvery  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bottlecap <world> <robot> <name>",
		Short: "force-guided bottle cap alignment and screwing controller",
		Long: "Runs the bottle cap controller against a robot publishing its state to redis.\n" +
			"<world> is recorded with the run, <robot> is the chain description (yaml)\n" +
			"and <name> is the robot name used in the redis keys.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runController,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "apply a preset on top of the config")
	rootCmd.Flags().BoolVar(&record, "record", false, "record the run under record.dir")

	monitorCmd := &cobra.Command{
		Use:   "monitor <name>",
		Short: "live view of a running controller",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonitor,
	}
	monitorCmd.Flags().StringVar(&pollEvery, "every", "100ms", "poll interval")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "recorded runs",
	}
	runsCmd.PersistentFlags().StringVar(&dataDir, "data", "", "runs directory (default record.dir)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot <run_id>",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngDir, "png", "", "write PNG plots into this directory")

	runsCmd.AddCommand(listCmd, plotCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "configuration helpers",
	}
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "print the effective configuration",
		RunE:  dumpConfig,
	}
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-12s %-6s %s\n",
					name, cfg.Task.AlignVariant, cfg.Task.CheckAlignFinished, config.PresetDescription(name))
			}
		},
	}
	configCmd.AddCommand(dumpCmd, presetsCmd)

	rootCmd.AddCommand(monitorCmd, runsCmd, configCmd)
	return rootCmd
}

// loadConfig builds the effective configuration: defaults or the config
// file, then the preset, then the environment.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if preset != "" && !config.ApplyPreset(cfg, preset) {
		return nil, fmt.Errorf("%w: unknown preset %q (have %v)", config.ErrInvalid, preset, config.ListPresets())
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
