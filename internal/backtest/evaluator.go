package backtest

import (
	"fmt"
	"math"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/strategy"
)

// Evaluate simulates the position column of series over its closes. A
// position held on bar t-1 earns the return of bar t, and every change of
// exposure costs fee times its magnitude.
func Evaluate(series *strategy.Series, fee float64) (*Performance, error) {
	if series.Len() == 0 {
		return nil, core.WrapError(core.ErrInvalidSeries, fmt.Errorf("signal series is empty"))
	}
	if math.IsNaN(fee) || fee < 0 {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("fee must be >= 0, got %v", fee))
	}

	rows := make([]PerfRow, series.Len())
	cumMarket, cumStrategy := 1.0, 1.0
	for i, r := range series.Rows {
		row := PerfRow{
			Bar:            r.Bar,
			Position:       r.Position,
			Return:         math.NaN(),
			StrategyReturn: math.NaN(),
		}
		if i > 0 {
			prev := series.Rows[i-1]
			row.Return = r.Bar.Close/prev.Bar.Close - 1
			change := math.Abs(float64(r.Position - prev.Position))
			row.StrategyReturn = float64(prev.Position)*row.Return - fee*change

			cumMarket *= 1 + row.Return
			cumStrategy *= 1 + row.StrategyReturn
		}
		row.CumulativeMarket = cumMarket
		row.CumulativeStrategy = cumStrategy
		rows[i] = row
	}

	curve := make([]float64, len(rows))
	for i, r := range rows {
		curve[i] = r.CumulativeStrategy
	}

	perf := &Performance{
		Rows:        rows,
		MaxDrawdown: calculateMaxDrawdown(curve),
		FinalReturn: cumStrategy,
	}
	perf.Sharpe = calculateSharpeRatio(perf.StrategyReturns())
	return perf, nil
}
