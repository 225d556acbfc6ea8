package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/bottlecap/internal/analysis"
	"github.com/san-kum/bottlecap/internal/storage"
	"github.com/san-kum/bottlecap/internal/viz"
)

func runsStore() (*storage.Store, error) {
	if dataDir != "" {
		return storage.New(dataDir), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.Record.Dir), nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := runsStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROBOT\tTIME\tDURATION\tALIGN\tTOPOLOGY\tPHASE\tERROR")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.AlignVariant,
			run.Topology,
			run.FinalPhase,
			run.Error,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := runsStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadTicks(runID)
	if err != nil {
		return err
	}
	if series.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "robot: %s (%s align, check align -> %s)\n", meta.Name, meta.AlignVariant, meta.Topology)
	fmt.Fprintf(out, "samples: %d\n\n", series.Len())

	z := make([]float64, series.Len())
	for i, x := range series.X {
		z[i] = x.Z
	}
	for _, c := range []struct {
		caption string
		data    []float64
	}{
		{"contact angle (rad)", series.Theta},
		{"|tau| (Nm)", series.TorqueNorm},
		{"end-effector z (m)", z},
	} {
		fmt.Fprintln(out, asciigraph.Plot(c.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(c.caption),
		))
		fmt.Fprintln(out)
	}

	if peak, err := analysis.DominantOscillation(series.Time, series.Theta); err == nil {
		fmt.Fprintf(out, "contact angle oscillation: %.2f Hz (power %.3g)\n", peak.Frequency, peak.Power)
	}

	if pngDir != "" {
		paths, err := viz.SaveRunPlots(series, pngDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(out, "wrote %s\n", p)
		}
	}
	return nil
}
