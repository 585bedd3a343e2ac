package core

import (
	"fmt"
	"time"
)

// Bar is one step of a single-asset close price series
type Bar struct {
	Time  time.Time // zero when the source carries no timestamps
	Index int       // position in the source series
	Close float64
}

// HasTime reports whether the bar is keyed by a timestamp
func (b Bar) HasTime() bool {
	return !b.Time.IsZero()
}

// IsValid checks if the bar has a usable close price
func (b Bar) IsValid() bool {
	return b.Close > 0
}

// Direction is the side of an entry signal or a held position
type Direction int

const (
	Short Direction = -1
	Flat  Direction = 0
	Long  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "Long"
	case Short:
		return "Short"
	default:
		return "Flat"
	}
}

// Closes extracts the close column
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// ValidateBars checks that a series is non-empty, has positive closes and,
// when timestamped, strictly increasing unique timestamps.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return WrapError(ErrInvalidSeries, fmt.Errorf("price series is empty"))
	}
	timed := bars[0].HasTime()
	for i, b := range bars {
		if !b.IsValid() {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d: close must be positive, got %v", i, b.Close))
		}
		if b.HasTime() != timed {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d: mixed timestamped and index-keyed bars", i))
		}
		if i == 0 {
			continue
		}
		if timed && !b.Time.After(bars[i-1].Time) {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d: timestamp %s not after %s",
				i, b.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339)))
		}
		if !timed && b.Index <= bars[i-1].Index {
			return WrapError(ErrInvalidSeries, fmt.Errorf("bar %d: index %d not after %d", i, b.Index, bars[i-1].Index))
		}
	}
	return nil
}

// IndexBars builds index-keyed bars from raw closes
func IndexBars(closes []float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Index: i, Close: c}
	}
	return bars
}

// DailyBars builds daily bars starting at start
func DailyBars(start time.Time, closes []float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Time: start.AddDate(0, 0, i), Index: i, Close: c}
	}
	return bars
}
