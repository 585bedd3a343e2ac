package main

import (
	"github.com/newthinker/bandrev/internal/report"
	"github.com/newthinker/bandrev/internal/sweep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sweepWindows []int
	sweepNumStds []float64
	sweepWorkers int
	sweepFormat  string
	sweepTop     int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Backtest a grid of windows and band widths",
	Long: `Load the configured price series once, backtest every window and
band width combination in parallel and rank them by Sharpe ratio.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().IntSliceVar(&sweepWindows, "windows", nil, "Rolling window lengths, e.g. 10,20,30")
	sweepCmd.Flags().Float64SliceVar(&sweepNumStds, "num-stds", nil, "Band widths, e.g. 1.5,2,2.5")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "Parallel backtests")
	sweepCmd.Flags().StringVar(&sweepFormat, "format", "text", "Output format: text, json or yaml")
	sweepCmd.Flags().IntVar(&sweepTop, "top", 0, "Show only the best N parameter sets")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(sweepFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("windows") {
		cfg.Sweep.Windows = sweepWindows
	}
	if flags.Changed("num-stds") {
		cfg.Sweep.NumStds = sweepNumStds
	}
	if flags.Changed("workers") {
		cfg.Sweep.Workers = sweepWorkers
	}

	a, log, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing app", zap.Error(err))
		}
	}()

	req, err := a.Request()
	if err != nil {
		return err
	}

	grid := sweep.Grid{Windows: cfg.Sweep.Windows, NumStds: cfg.Sweep.NumStds}
	outcomes, runs, err := a.Sweep(cmd.Context(), req, grid)
	if err != nil {
		return err
	}

	// runs follow the successful outcomes in ranked order
	var rows []report.Summary
	for i, o := range outcomes {
		if o.Err != nil {
			log.Warn("grid point failed",
				zap.Int("window", o.Params.Window),
				zap.Float64("num_std", o.Params.NumStd),
				zap.Error(o.Err),
			)
			continue
		}
		s := report.FromResult(o.Result, false)
		if i < len(runs) {
			s.RunID = runs[i].ID
			s.ExportPath = runs[i].ExportPath
			s.SeriesPath = runs[i].SeriesPath
		}
		rows = append(rows, s)
	}
	if sweepTop > 0 && len(rows) > sweepTop {
		rows = rows[:sweepTop]
	}

	return report.RenderSweep(cmd.OutOrStdout(), format, rows)
}
