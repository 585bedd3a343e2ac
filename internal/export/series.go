package export

import (
	"fmt"
	"math"

	"github.com/newthinker/bandrev/internal/backtest"
)

// SeriesRecord is one bar of an exported run: the augmented signal series,
// the evaluated returns and equity curves, and the rolling Sharpe ratio.
// Undefined values are NaN.
type SeriesRecord struct {
	Date               string  `csv:"date" parquet:"date"`
	Close              float64 `csv:"close" parquet:"close"`
	SMA                float64 `csv:"sma" parquet:"sma"`
	Std                float64 `csv:"std" parquet:"std"`
	Upper              float64 `csv:"upper_band" parquet:"upper_band"`
	Lower              float64 `csv:"lower_band" parquet:"lower_band"`
	Signal             int64   `csv:"signal" parquet:"signal"`
	Exit               bool    `csv:"exit" parquet:"exit"`
	Position           int64   `csv:"position" parquet:"position"`
	Return             float64 `csv:"returns" parquet:"returns"`
	StrategyReturn     float64 `csv:"strategy_returns" parquet:"strategy_returns"`
	CumulativeMarket   float64 `csv:"cumulative_market" parquet:"cumulative_market"`
	CumulativeStrategy float64 `csv:"cumulative_strategy" parquet:"cumulative_strategy"`
	RollingSharpe      float64 `csv:"rolling_sharpe" parquet:"rolling_sharpe"`
}

// SeriesRecords flattens the per-bar output of result. Evaluated columns
// are NaN when the result carries no performance for a bar.
func SeriesRecords(result *backtest.Result) []SeriesRecord {
	n := result.Series.Len()
	out := make([]SeriesRecord, n)
	for i := 0; i < n; i++ {
		row := result.Series.Rows[i]
		rec := SeriesRecord{
			Date:               barKey(row.Bar.Time, row.Bar.Index),
			Close:              row.Bar.Close,
			SMA:                row.SMA,
			Std:                row.Std,
			Upper:              row.Upper,
			Lower:              row.Lower,
			Signal:             int64(row.Signal),
			Exit:               row.Exit,
			Position:           int64(row.Position),
			Return:             math.NaN(),
			StrategyReturn:     math.NaN(),
			CumulativeMarket:   math.NaN(),
			CumulativeStrategy: math.NaN(),
			RollingSharpe:      math.NaN(),
		}
		if result.Performance != nil && i < len(result.Performance.Rows) {
			p := result.Performance.Rows[i]
			rec.Return = p.Return
			rec.StrategyReturn = p.StrategyReturn
			rec.CumulativeMarket = p.CumulativeMarket
			rec.CumulativeStrategy = p.CumulativeStrategy
		}
		if i < len(result.RollingSharpe) {
			rec.RollingSharpe = result.RollingSharpe[i]
		}
		out[i] = rec
	}
	return out
}

// SeriesFileName returns the per-bar export file name for a parameter set,
// e.g. series_20_2.0.parquet.
func SeriesFileName(window int, numStd float64, format Format) string {
	return fmt.Sprintf("series_%d_%s.%s", window, formatStd(numStd), format)
}
