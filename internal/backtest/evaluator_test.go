package backtest

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/indicator"
	"github.com/newthinker/bandrev/internal/strategy"
	"github.com/newthinker/bandrev/internal/strategy/bollinger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualSeries builds a series from closes and a position column
func manualSeries(closes []float64, positions []core.Direction) *strategy.Series {
	bars := core.IndexBars(closes)
	rows := make([]strategy.Row, len(bars))
	prev := core.Flat
	for i, b := range bars {
		rows[i] = strategy.Row{Bar: b, Position: positions[i]}
		if positions[i] != prev {
			if prev != core.Flat {
				rows[i].Exit = true
			}
			if positions[i] != core.Flat {
				rows[i].Signal = positions[i]
			}
		}
		prev = positions[i]
	}
	return &strategy.Series{Strategy: "manual", Window: 1, NumStd: 1, Rows: rows}
}

func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	prices := make([]float64, n)
	p := 100.0
	for i := range prices {
		p *= 1 + rng.NormFloat64()*0.015
		prices[i] = p
	}
	return prices
}

func TestEvaluate_DegenerateBandsRoundTrip(t *testing.T) {
	series, err := bollinger.New(1, 2, indicator.StdSample).Generate(core.IndexBars([]float64{100, 110, 100}))
	require.NoError(t, err)

	perf, err := Evaluate(series, 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, perf.FinalReturn)
	assert.Equal(t, 0.0, perf.MaxDrawdown)
	assert.Equal(t, 0.0, perf.Sharpe)
}

func TestEvaluate_LaggedPosition(t *testing.T) {
	series := manualSeries(
		[]float64{100, 110, 121, 110},
		[]core.Direction{core.Flat, core.Long, core.Long, core.Flat},
	)

	perf, err := Evaluate(series, 0)
	require.NoError(t, err)
	require.Len(t, perf.Rows, 4)

	first := perf.Rows[0]
	assert.True(t, math.IsNaN(first.Return))
	assert.True(t, math.IsNaN(first.StrategyReturn))
	assert.Equal(t, 1.0, first.CumulativeMarket)
	assert.Equal(t, 1.0, first.CumulativeStrategy)

	// entry bar earns nothing, the position is held from the next bar
	assert.InDelta(t, 0.0, perf.Rows[1].StrategyReturn, 1e-12)
	assert.InDelta(t, 0.1, perf.Rows[2].StrategyReturn, 1e-12)
	assert.InDelta(t, 110.0/121.0-1, perf.Rows[3].StrategyReturn, 1e-12)

	assert.InDelta(t, 1.1, perf.Rows[3].CumulativeMarket, 1e-12)
	assert.InDelta(t, 1.0, perf.FinalReturn, 1e-12)
	assert.InDelta(t, 1.0/1.1-1, perf.MaxDrawdown, 1e-12)
}

func TestEvaluate_FeeOnEveryChange(t *testing.T) {
	series := manualSeries(
		[]float64{100, 100, 100, 100},
		[]core.Direction{core.Flat, core.Long, core.Short, core.Flat},
	)

	perf, err := Evaluate(series, 0.001)
	require.NoError(t, err)

	assert.InDelta(t, -0.001, perf.Rows[1].StrategyReturn, 1e-12)
	// direct reversal changes exposure by two units
	assert.InDelta(t, -0.002, perf.Rows[2].StrategyReturn, 1e-12)
	assert.InDelta(t, -0.001, perf.Rows[3].StrategyReturn, 1e-12)
	assert.Less(t, perf.FinalReturn, 1.0)
	assert.Less(t, perf.MaxDrawdown, 0.0)
}

func TestEvaluate_FeeMonotonic(t *testing.T) {
	series, err := bollinger.New(10, 1, indicator.StdSample).Generate(core.IndexBars(randomWalk(500, 7)))
	require.NoError(t, err)
	require.NotZero(t, series.Entries(), "fixture should trade")

	fees := []float64{0, 0.0001, 0.001, 0.01}
	var prev *Performance
	for _, fee := range fees {
		perf, err := Evaluate(series, fee)
		require.NoError(t, err)

		if prev != nil {
			assert.LessOrEqual(t, perf.FinalReturn, prev.FinalReturn, "fee %v", fee)
			for i := 1; i < len(perf.Rows); i++ {
				changed := series.Rows[i].Position != series.Rows[i-1].Position
				if changed {
					assert.Less(t, perf.Rows[i].StrategyReturn, prev.Rows[i].StrategyReturn, "bar %d", i)
				} else {
					assert.Equal(t, prev.Rows[i].StrategyReturn, perf.Rows[i].StrategyReturn, "bar %d", i)
				}
			}
		}
		prev = perf
	}
}

func TestEvaluate_NoTradesHasZeroSharpe(t *testing.T) {
	prices := make([]float64, 100)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	series, err := bollinger.New(20, 2, indicator.StdSample).Generate(core.IndexBars(prices))
	require.NoError(t, err)

	perf, err := Evaluate(series, 0.001)
	require.NoError(t, err)

	assert.Equal(t, 0.0, perf.Sharpe)
	assert.Equal(t, 1.0, perf.FinalReturn)
	assert.Equal(t, 0.0, perf.MaxDrawdown)
	assert.Greater(t, perf.Rows[len(perf.Rows)-1].CumulativeMarket, 1.0)
}

func TestEvaluate_SingleBar(t *testing.T) {
	perf, err := Evaluate(manualSeries([]float64{100}, []core.Direction{core.Flat}), 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, perf.FinalReturn)
	assert.Equal(t, 0.0, perf.Sharpe)
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate(nil, 0)
	assert.True(t, errors.Is(err, core.ErrInvalidSeries))

	_, err = Evaluate(&strategy.Series{}, 0)
	assert.True(t, errors.Is(err, core.ErrInvalidSeries))

	series := manualSeries([]float64{100, 101}, []core.Direction{core.Flat, core.Flat})
	_, err = Evaluate(series, -0.01)
	assert.True(t, errors.Is(err, core.ErrInvalidParams))

	_, err = Evaluate(series, math.NaN())
	assert.True(t, errors.Is(err, core.ErrInvalidParams))
}

func TestEvaluate_SharpeMatchesFormula(t *testing.T) {
	series := manualSeries(
		[]float64{100, 110, 121, 110, 99},
		[]core.Direction{core.Long, core.Long, core.Long, core.Short, core.Short},
	)
	perf, err := Evaluate(series, 0)
	require.NoError(t, err)

	r := perf.StrategyReturns()[1:]
	var mean float64
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))
	var ss float64
	for _, v := range r {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(r)-1))

	assert.InDelta(t, mean/std*math.Sqrt(252), perf.Sharpe, 1e-9)
}
