package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/bandrev/internal/backtest"
	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/export"
	"gopkg.in/yaml.v3"
)

// Format is an output format for run summaries
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown output format %q", s))
	}
}

// Summary is the rendered view of one backtest run
type Summary struct {
	RunID           string          `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Strategy        string          `json:"strategy" yaml:"strategy"`
	Symbol          string          `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Window          int             `json:"window" yaml:"window"`
	NumStd          float64         `json:"num_std" yaml:"num_std"`
	Fee             float64         `json:"fee" yaml:"fee"`
	Start           string          `json:"start,omitempty" yaml:"start,omitempty"`
	End             string          `json:"end,omitempty" yaml:"end,omitempty"`
	Bars            int             `json:"bars" yaml:"bars"`
	Sharpe          float64         `json:"sharpe" yaml:"sharpe"`
	MaxDrawdown     float64         `json:"max_drawdown" yaml:"max_drawdown"`
	FinalReturn     float64         `json:"final_return" yaml:"final_return"`
	Trades          int             `json:"trades" yaml:"trades"`
	WinRate         float64         `json:"win_rate" yaml:"win_rate"`
	LongTrades      int             `json:"long_trades" yaml:"long_trades"`
	ShortTrades     int             `json:"short_trades" yaml:"short_trades"`
	AverageReturn   float64         `json:"average_return" yaml:"average_return"`
	AverageDuration float64         `json:"average_duration" yaml:"average_duration"`
	ExportPath      string          `json:"export_path,omitempty" yaml:"export_path,omitempty"`
	SeriesPath      string          `json:"series_path,omitempty" yaml:"series_path,omitempty"`
	TradeLog        []export.Record `json:"trade_log,omitempty" yaml:"trade_log,omitempty"`
	Curve           []Point         `json:"curve,omitempty" yaml:"curve,omitempty"`
}

// Point is one bar of the equity curve view. Undefined values are nil so
// the view encodes as JSON.
type Point struct {
	Date               string   `json:"date" yaml:"date"`
	Close              float64  `json:"close" yaml:"close"`
	Position           int64    `json:"position" yaml:"position"`
	StrategyReturn     *float64 `json:"strategy_return" yaml:"strategy_return"`
	CumulativeMarket   *float64 `json:"cumulative_market" yaml:"cumulative_market"`
	CumulativeStrategy *float64 `json:"cumulative_strategy" yaml:"cumulative_strategy"`
	RollingSharpe      *float64 `json:"rolling_sharpe" yaml:"rolling_sharpe"`
}

// Curve builds the per-bar equity curve and rolling Sharpe view of result
func Curve(result *backtest.Result) []Point {
	records := export.SeriesRecords(result)
	out := make([]Point, len(records))
	for i, r := range records {
		out[i] = Point{
			Date:               r.Date,
			Close:              r.Close,
			Position:           r.Position,
			StrategyReturn:     defined(r.StrategyReturn),
			CumulativeMarket:   defined(r.CumulativeMarket),
			CumulativeStrategy: defined(r.CumulativeStrategy),
			RollingSharpe:      defined(r.RollingSharpe),
		}
	}
	return out
}

func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FromResult builds a summary of result. The trade log is included when
// withTrades is set.
func FromResult(result *backtest.Result, withTrades bool) Summary {
	s := Summary{
		Strategy:        result.Strategy,
		Symbol:          result.Symbol,
		Window:          result.Window,
		NumStd:          result.NumStd,
		Fee:             result.Fee,
		Bars:            result.Series.Len(),
		Sharpe:          result.Performance.Sharpe,
		MaxDrawdown:     result.Performance.MaxDrawdown,
		FinalReturn:     result.Performance.FinalReturn,
		Trades:          result.Stats.TotalTrades,
		WinRate:         result.Stats.WinRate,
		LongTrades:      result.Stats.LongTrades,
		ShortTrades:     result.Stats.ShortTrades,
		AverageReturn:   result.Stats.AverageReturn,
		AverageDuration: result.Stats.AverageDuration,
	}
	if !result.StartDate.IsZero() {
		s.Start = result.StartDate.Format("2006-01-02")
		s.End = result.EndDate.Format("2006-01-02")
	}
	if withTrades {
		s.TradeLog = export.Records(result.Trades)
	}
	return s
}

// Render writes one summary in the given format
func Render(w io.Writer, format Format, s Summary) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatYAML:
		return writeYAML(w, s)
	default:
		return renderText(w, s)
	}
}

// RenderSweep writes a ranked list of summaries in the given format
func RenderSweep(w io.Writer, format Format, rows []Summary) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	default:
		return renderSweepText(w, rows)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func renderText(w io.Writer, s Summary) error {
	fmt.Fprintln(w, "=== Backtest ===")
	fmt.Fprintf(w, "Strategy:     %s (window=%d, num_std=%s)\n", s.Strategy, s.Window, formatFloat(s.NumStd))
	if s.Symbol != "" {
		fmt.Fprintf(w, "Symbol:       %s\n", s.Symbol)
	}
	if s.Start != "" {
		fmt.Fprintf(w, "Period:       %s to %s\n", s.Start, s.End)
	}
	fmt.Fprintf(w, "Bars:         %d\n", s.Bars)
	fmt.Fprintf(w, "Fee:          %s\n", formatFloat(s.Fee))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sharpe Ratio: %s\n", FormatSharpe(s.Sharpe))
	fmt.Fprintf(w, "Max Drawdown: %s\n", FormatDrawdown(s.MaxDrawdown))
	fmt.Fprintf(w, "Final Return: %s\n", FormatFinalReturn(s.FinalReturn))
	fmt.Fprintf(w, "Trades:       %d (long %d, short %d)\n", s.Trades, s.LongTrades, s.ShortTrades)
	if s.Trades > 0 {
		fmt.Fprintf(w, "Win Rate:     %.2f%%\n", s.WinRate*100)
	}
	if s.ExportPath != "" {
		fmt.Fprintf(w, "Trade Log:    %s\n", s.ExportPath)
	}
	if s.SeriesPath != "" {
		fmt.Fprintf(w, "Series:       %s\n", s.SeriesPath)
	}

	if len(s.TradeLog) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTRY\tEXIT\tSIDE\tENTRY PRICE\tEXIT PRICE\tRETURN\tDAYS\t")
		fmt.Fprintln(tw, "-----\t----\t----\t-----------\t----------\t------\t----\t")
		for _, t := range s.TradeLog {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f%%\t%d\t\n",
				t.EntryDate, t.ExitDate, t.Direction, t.EntryPrice, t.ExitPrice, t.Return*100, t.Duration)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(s.Curve) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tCLOSE\tPOS\tMARKET\tSTRATEGY\tROLLING SHARPE\t")
		fmt.Fprintln(tw, "----\t-----\t---\t------\t--------\t--------------\t")
		for _, p := range s.Curve {
			fmt.Fprintf(tw, "%s\t%.2f\t%d\t%s\t%s\t%s\t\n",
				p.Date, p.Close, p.Position, optional(p.CumulativeMarket, "%.4f"),
				optional(p.CumulativeStrategy, "%.4f"), optional(p.RollingSharpe, "%.2f"))
		}
		return tw.Flush()
	}
	return nil
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func renderSweepText(w io.Writer, rows []Summary) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No parameter sets evaluated.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tWINDOW\tNUM_STD\tSHARPE\tMAX DD\tFINAL\tTRADES\tWIN RATE\t")
	fmt.Fprintln(tw, "----\t------\t-------\t------\t------\t-----\t------\t--------\t")
	for i, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%d\t%.2f%%\t\n",
			i+1, r.Window, formatFloat(r.NumStd), FormatSharpe(r.Sharpe),
			FormatDrawdown(r.MaxDrawdown), FormatFinalReturn(r.FinalReturn), r.Trades, r.WinRate*100)
	}
	return tw.Flush()
}

// FormatSharpe renders a Sharpe ratio to two decimals
func FormatSharpe(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// FormatDrawdown renders a drawdown fraction as a percentage
func FormatDrawdown(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// FormatFinalReturn renders a growth factor, e.g. 1.15x
func FormatFinalReturn(v float64) string {
	return fmt.Sprintf("%.2fx", v)
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
