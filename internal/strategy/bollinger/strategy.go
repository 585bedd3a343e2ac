package bollinger

import (
	"fmt"
	"math"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/indicator"
	"github.com/newthinker/bandrev/internal/strategy"
)

const (
	// Name is the registry key of the strategy
	Name = "bollinger"

	DefaultWindow = 20
	DefaultNumStd = 2.0
)

// Bollinger implements band mean reversion: go long below the lower band,
// short above the upper band, and close once price crosses back over the
// moving average.
type Bollinger struct {
	window  int
	numStd  float64
	stdMode indicator.StdMode
}

// New creates a new Bollinger strategy
func New(window int, numStd float64, stdMode indicator.StdMode) *Bollinger {
	if stdMode == "" {
		stdMode = indicator.StdSample
	}
	return &Bollinger{
		window:  window,
		numStd:  numStd,
		stdMode: stdMode,
	}
}

// Factory builds a Bollinger strategy from "window", "num_std" and
// "std_mode" params.
func Factory(cfg strategy.Config) (strategy.Strategy, error) {
	mode, err := indicator.ParseStdMode(cfg.String("std_mode", ""))
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidParams, err)
	}
	b := New(cfg.Int("window", DefaultWindow), cfg.Float("num_std", DefaultNumStd), mode)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bollinger) Name() string {
	return Name
}

func (b *Bollinger) Description() string {
	return fmt.Sprintf("Bollinger mean reversion (%d, %.2f, %s std)", b.window, b.numStd, b.stdMode)
}

// Window returns the rolling window length
func (b *Bollinger) Window() int {
	return b.window
}

// NumStd returns the band width multiplier
func (b *Bollinger) NumStd() float64 {
	return b.numStd
}

// Validate rejects parameters the band computation cannot use
func (b *Bollinger) Validate() error {
	if b.window < 1 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("window must be >= 1, got %d", b.window))
	}
	if math.IsNaN(b.numStd) || b.numStd <= 0 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("num_std must be > 0, got %v", b.numStd))
	}
	return nil
}

// Generate computes bands over the closes and replays the trade state
// machine bar by bar. A series shorter than the window is valid and yields
// no signals.
func (b *Bollinger) Generate(bars []core.Bar) (*strategy.Series, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}

	bands := indicator.Bands(core.Closes(bars), b.window, b.numStd, b.stdMode)

	rows := make([]strategy.Row, len(bars))
	m := &machine{state: stateFlat}
	for i, bar := range bars {
		view := barView{
			close:     bar.Close,
			sma:       bands.SMA[i],
			upper:     bands.Upper[i],
			lower:     bands.Lower[i],
			prevClose: math.NaN(),
			prevSMA:   math.NaN(),
		}
		if i > 0 {
			view.prevClose = bars[i-1].Close
			view.prevSMA = bands.SMA[i-1]
		}

		row := strategy.Row{
			Bar:   bar,
			SMA:   bands.SMA[i],
			Std:   bands.Std[i],
			Upper: bands.Upper[i],
			Lower: bands.Lower[i],
		}
		switch m.step(view) {
		case eventEnterLong:
			row.Signal = core.Long
		case eventEnterShort:
			row.Signal = core.Short
		case eventExit:
			row.Exit = true
		}
		row.Position = m.state.position()
		rows[i] = row
	}

	return &strategy.Series{
		Strategy: Name,
		Window:   b.window,
		NumStd:   b.numStd,
		Rows:     rows,
	}, nil
}
