package bollinger

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/indicator"
	"github.com/newthinker/bandrev/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioPrices = []float64{100, 95, 90, 95, 100, 105, 110, 105, 100}

func TestBollinger_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*Bollinger)(nil)
}

func TestBollinger_Name(t *testing.T) {
	s := New(20, 2, indicator.StdSample)
	if s.Name() != "bollinger" {
		t.Errorf("expected 'bollinger', got '%s'", s.Name())
	}
}

func TestBollinger_InvalidParams(t *testing.T) {
	bars := core.IndexBars([]float64{1, 2, 3})

	tests := []struct {
		name   string
		window int
		numStd float64
	}{
		{"zero window", 0, 2},
		{"negative window", -3, 2},
		{"zero num_std", 20, 0},
		{"negative num_std", 20, -1},
		{"NaN num_std", 20, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := New(tt.window, tt.numStd, indicator.StdSample).Generate(bars)
			assert.Nil(t, series)
			assert.True(t, errors.Is(err, core.ErrInvalidParams), "got %v", err)
		})
	}
}

func TestBollinger_EmptySeries(t *testing.T) {
	_, err := New(3, 1, indicator.StdSample).Generate(nil)
	assert.True(t, errors.Is(err, core.ErrInvalidSeries), "got %v", err)
}

func TestBollinger_ShorterThanWindow(t *testing.T) {
	series, err := New(20, 2, indicator.StdSample).Generate(core.IndexBars([]float64{100, 90, 80, 120}))
	require.NoError(t, err)
	require.Equal(t, 4, series.Len())

	for i, r := range series.Rows {
		assert.False(t, r.HasBands(), "row %d should have no bands", i)
		assert.Equal(t, core.Flat, r.Signal)
		assert.False(t, r.Exit)
		assert.Equal(t, core.Flat, r.Position)
	}
}

func TestBollinger_MonotonicPricesNeverEnter(t *testing.T) {
	linear := make([]float64, 60)
	for i := range linear {
		linear[i] = 100 + float64(i)
	}
	constant := make([]float64, 60)
	for i := range constant {
		constant[i] = 100
	}

	for name, prices := range map[string][]float64{"linear": linear, "constant": constant} {
		t.Run(name, func(t *testing.T) {
			series, err := New(20, 2, indicator.StdSample).Generate(core.IndexBars(prices))
			require.NoError(t, err)
			assert.Zero(t, series.Entries())
			assert.Zero(t, series.Exits())
		})
	}
}

func TestBollinger_WindowOneNeverEnters(t *testing.T) {
	series, err := New(1, 2, indicator.StdSample).Generate(core.IndexBars([]float64{100, 110, 100}))
	require.NoError(t, err)
	assert.Zero(t, series.Entries())
	for _, r := range series.Rows {
		assert.Equal(t, r.Bar.Close, r.Upper)
		assert.Equal(t, r.Bar.Close, r.Lower)
	}
}

func TestBollinger_ScenarioSampleStd(t *testing.T) {
	// With the n-1 estimator the closes touch but never pierce the bands.
	// The long leg at bars 2-3 only appears with population std, see
	// TestBollinger_ScenarioPopulationStd; zero entries here is correct.
	series, err := New(3, 1, indicator.StdSample).Generate(core.IndexBars(scenarioPrices))
	require.NoError(t, err)
	assert.Zero(t, series.Entries())
}

func TestBollinger_ScenarioPopulationStd(t *testing.T) {
	// This is the estimator that reproduces the Long 2->3 trade. It also
	// shorts 4->7 and reopens long on the last bar; both are expected.
	series, err := New(3, 1, indicator.StdPopulation).Generate(core.IndexBars(scenarioPrices))
	require.NoError(t, err)

	wantSignal := []core.Direction{0, 0, core.Long, 0, core.Short, 0, 0, 0, core.Long}
	wantExit := []bool{false, false, false, true, false, false, false, true, false}
	wantPos := []core.Direction{0, 0, 1, 0, -1, -1, -1, 0, 1}

	for i, r := range series.Rows {
		assert.Equal(t, wantSignal[i], r.Signal, "signal[%d]", i)
		assert.Equal(t, wantExit[i], r.Exit, "exit[%d]", i)
		assert.Equal(t, wantPos[i], r.Position, "position[%d]", i)
	}

	// long entry at the local minimum, below sma - std
	entry := series.Rows[2]
	assert.Less(t, entry.Bar.Close, entry.Lower)
	// exit once the close crosses back above the sma
	exit := series.Rows[3]
	assert.Greater(t, exit.Bar.Close, exit.SMA)
	assert.LessOrEqual(t, series.Rows[2].Bar.Close, series.Rows[2].SMA)
}

func TestBollinger_FirstBandBarCannotExit(t *testing.T) {
	// Entry happens on the first bar with bands; the next bar is the
	// earliest possible exit.
	series, err := New(2, 0.5, indicator.StdPopulation).Generate(core.IndexBars([]float64{100, 90, 120}))
	require.NoError(t, err)
	assert.Equal(t, core.Long, series.Rows[1].Signal)
	assert.False(t, series.Rows[1].Exit)
	assert.True(t, series.Rows[2].Exit)
	assert.Equal(t, core.Flat, series.Rows[2].Position)
}

func TestBollinger_StateMachineInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	prices := make([]float64, 1000)
	p := 100.0
	for i := range prices {
		p *= 1 + rng.NormFloat64()*0.02
		prices[i] = p
	}
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, window := range []int{2, 5, 20} {
		for _, k := range []float64{0.5, 1, 2} {
			series, err := New(window, k, indicator.StdSample).Generate(core.DailyBars(start, prices))
			require.NoError(t, err)

			prev := core.Flat
			for i, r := range series.Rows {
				assert.Contains(t, []core.Direction{core.Short, core.Flat, core.Long}, r.Position)
				if r.Signal != core.Flat {
					assert.Equal(t, core.Flat, prev, "entry while in a trade at %d", i)
					assert.Equal(t, r.Signal, r.Position, "entry bar %d", i)
					assert.False(t, r.Exit, "entry and exit on bar %d", i)
				}
				if r.Exit {
					assert.NotEqual(t, core.Flat, prev, "exit while flat at %d", i)
					assert.Equal(t, core.Flat, r.Position, "exit bar %d", i)
				}
				if r.Signal == core.Flat && !r.Exit {
					assert.Equal(t, prev, r.Position, "position changed without event at %d", i)
				}
				if !r.HasBands() {
					assert.Equal(t, core.Flat, r.Signal, "signal before bands at %d", i)
				}
				prev = r.Position
			}
		}
	}
}

func TestBollinger_Deterministic(t *testing.T) {
	s := New(3, 1, indicator.StdPopulation)
	a, err := s.Generate(core.IndexBars(scenarioPrices))
	require.NoError(t, err)
	b, err := s.Generate(core.IndexBars(scenarioPrices))
	require.NoError(t, err)
	assert.Equal(t, a.Positions(), b.Positions())
}

func TestFactory(t *testing.T) {
	s, err := Factory(strategy.Config{Params: map[string]any{
		"window":   10,
		"num_std":  1.5,
		"std_mode": "population",
	}})
	require.NoError(t, err)

	b := s.(*Bollinger)
	assert.Equal(t, 10, b.Window())
	assert.Equal(t, 1.5, b.NumStd())
	assert.Equal(t, indicator.StdPopulation, b.stdMode)

	_, err = Factory(strategy.Config{Params: map[string]any{"std_mode": "bogus"}})
	assert.True(t, errors.Is(err, core.ErrInvalidParams))

	_, err = Factory(strategy.Config{Params: map[string]any{"window": 0}})
	assert.True(t, errors.Is(err, core.ErrInvalidParams))

	d, err := Factory(strategy.Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, d.(*Bollinger).Window())
}
