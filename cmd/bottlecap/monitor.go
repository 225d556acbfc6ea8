package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/bottlecap/internal/telemetry"
	"github.com/san-kum/bottlecap/internal/viz"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	every, err := time.ParseDuration(pollEvery)
	if err != nil {
		return fmt.Errorf("invalid --every: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Store.DialTimeout)
	defer cancel()
	store, err := telemetry.Dial(ctx, cfg.Store, telemetry.NewKeys(cfg.Store, args[0]), zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	p := tea.NewProgram(viz.NewMonitor(store, args[0], every), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
