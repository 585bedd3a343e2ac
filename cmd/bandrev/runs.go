package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/bandrev/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived backtest runs",
	Long:  "List runs stored in the SQLite archive configured by export.sqlite_path, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to show (0 for all)")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	runs, err := a.Runs(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs archived.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSYMBOL\tWINDOW\tNUM_STD\tSHARPE\tMAX DD\tFINAL\tTRADES\t")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%g\t%s\t%s\t%s\t%d\t\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Symbol, r.Window, r.NumStd,
			report.FormatSharpe(r.Sharpe), report.FormatDrawdown(r.MaxDrawdown),
			report.FormatFinalReturn(r.FinalReturn), r.TotalTrades)
	}
	return tw.Flush()
}
