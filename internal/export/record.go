package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/bandrev/internal/backtest"
)

// Record is one row of an exported trade log
type Record struct {
	EntryDate   string   `csv:"Entry Date" parquet:"entry_date" json:"entry_date" yaml:"entry_date"`
	ExitDate    string   `csv:"Exit Date" parquet:"exit_date" json:"exit_date" yaml:"exit_date"`
	Direction   string   `csv:"Direction" parquet:"direction" json:"direction" yaml:"direction"`
	EntryPrice  float64  `csv:"Entry Price" parquet:"entry_price" json:"entry_price" yaml:"entry_price"`
	ExitPrice   float64  `csv:"Exit Price" parquet:"exit_price" json:"exit_price" yaml:"exit_price"`
	Return      float64  `csv:"Return" parquet:"return" json:"return" yaml:"return"`
	Duration    int64    `csv:"Duration" parquet:"duration" json:"duration" yaml:"duration"`
	Window      int64    `csv:"window" parquet:"window" json:"window" yaml:"window"`
	NumStd      float64  `csv:"num_std" parquet:"num_std" json:"num_std" yaml:"num_std"`
	Sharpe      *float64 `csv:"Sharpe,omitempty" parquet:"sharpe" json:"sharpe" yaml:"sharpe"`
	MaxDrawdown *float64 `csv:"Max Drawdown,omitempty" parquet:"max_drawdown" json:"max_drawdown" yaml:"max_drawdown"`
	FinalReturn *float64 `csv:"Final Return,omitempty" parquet:"final_return" json:"final_return" yaml:"final_return"`
	WinRate     float64  `csv:"Win Rate" parquet:"win_rate" json:"win_rate" yaml:"win_rate"`
}

// Records flattens a trade log into export rows
func Records(trades []backtest.Trade) []Record {
	out := make([]Record, len(trades))
	for i, t := range trades {
		out[i] = Record{
			EntryDate:   barKey(t.EntryTime, t.EntryIndex),
			ExitDate:    barKey(t.ExitTime, t.ExitIndex),
			Direction:   t.Direction.String(),
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			Return:      t.Return,
			Duration:    int64(t.Duration),
			Window:      int64(t.Meta.Window),
			NumStd:      t.Meta.NumStd,
			Sharpe:      t.Meta.Sharpe,
			MaxDrawdown: t.Meta.MaxDrawdown,
			FinalReturn: t.Meta.FinalReturn,
			WinRate:     t.Meta.WinRate,
		}
	}
	return out
}

// barKey renders the time key of a bar: its date when timestamped, its
// series index otherwise.
func barKey(ts time.Time, index int) string {
	if ts.IsZero() {
		return strconv.Itoa(index)
	}
	if ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 {
		return ts.Format("2006-01-02")
	}
	return ts.Format("2006-01-02 15:04:05")
}

// FileName returns the export file name for a parameter set,
// e.g. trade_log_20_2.0.csv.
func FileName(window int, numStd float64, format Format) string {
	return fmt.Sprintf("trade_log_%d_%s.%s", window, formatStd(numStd), format)
}

// formatStd renders a float the way it reads in a file name: integral
// values keep one decimal place.
func formatStd(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
