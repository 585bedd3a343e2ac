package main

import (
	"github.com/newthinker/bandrev/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestSymbol string
	backtestFrom   string
	backtestTo     string
	backtestWindow int
	backtestNumStd float64
	backtestFee    float64
	backtestFormat string
	backtestTrades bool
	backtestCurve  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a Bollinger band backtest",
	Long: `Load the configured price series, run the strategy once and show
performance statistics. The trade log is exported when export is enabled.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD")
	backtestCmd.Flags().IntVar(&backtestWindow, "window", 0, "Rolling window length")
	backtestCmd.Flags().Float64Var(&backtestNumStd, "num-std", 0, "Band width in standard deviations")
	backtestCmd.Flags().Float64Var(&backtestFee, "fee", 0, "Proportional fee per unit of position change")
	backtestCmd.Flags().StringVar(&backtestFormat, "format", "text", "Output format: text, json or yaml")
	backtestCmd.Flags().BoolVar(&backtestTrades, "trades", false, "Include the trade log in the output")
	backtestCmd.Flags().BoolVar(&backtestCurve, "curve", false, "Include the equity curve and rolling Sharpe in the output")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(backtestFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("symbol") {
		cfg.Data.Symbol = backtestSymbol
	}
	if flags.Changed("from") {
		cfg.Data.From = backtestFrom
	}
	if flags.Changed("to") {
		cfg.Data.To = backtestTo
	}
	if flags.Changed("window") {
		cfg.Strategy.Window = backtestWindow
	}
	if flags.Changed("num-std") {
		cfg.Strategy.NumStd = backtestNumStd
	}
	if flags.Changed("fee") {
		cfg.Backtest.Fee = backtestFee
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

	run, err := a.Backtest(cmd.Context(), req)
	if err != nil {
		return err
	}

	summary := report.FromResult(run.Result, backtestTrades)
	summary.RunID = run.ID
	summary.ExportPath = run.ExportPath
	summary.SeriesPath = run.SeriesPath
	if backtestCurve {
		summary.Curve = report.Curve(run.Result)
	}
	return report.Render(cmd.OutOrStdout(), format, summary)
}
