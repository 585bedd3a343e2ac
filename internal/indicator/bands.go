package indicator

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// StdMode selects the standard deviation estimator used for band width
type StdMode string

const (
	StdSample     StdMode = "sample"     // n-1 denominator
	StdPopulation StdMode = "population" // n denominator
)

// ParseStdMode maps a config string to a StdMode. Empty means sample.
func ParseStdMode(s string) (StdMode, error) {
	switch StdMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", StdSample:
		return StdSample, nil
	case StdPopulation:
		return StdPopulation, nil
	default:
		return "", fmt.Errorf("unknown std mode %q", s)
	}
}

// BandSeries holds Bollinger band columns aligned with the input prices.
// Rows before the first full window are NaN.
type BandSeries struct {
	SMA   []float64
	Std   []float64
	Upper []float64
	Lower []float64
}

// Bands computes the trailing mean and standard deviation over window
// prices (current bar inclusive) and the envelope mean ± numStd·std.
func Bands(prices []float64, window int, numStd float64, mode StdMode) BandSeries {
	n := len(prices)
	b := BandSeries{
		SMA:   nanSlice(n),
		Std:   nanSlice(n),
		Upper: nanSlice(n),
		Lower: nanSlice(n),
	}
	if window < 1 || n < window {
		return b
	}

	sma := SMA(prices, window)
	for j, mean := range sma {
		i := j + window - 1
		std := RollingStd(prices[j:i+1], mode)
		b.SMA[i] = mean
		b.Std[i] = std
		b.Upper[i] = mean + numStd*std
		b.Lower[i] = mean - numStd*std
	}
	return b
}

// RollingStd is the standard deviation of one window. A single value has
// zero spread so degenerate bands collapse onto the price.
func RollingStd(window []float64, mode StdMode) float64 {
	switch len(window) {
	case 0:
		return math.NaN()
	case 1:
		return 0
	}
	if mode == StdPopulation {
		return math.Sqrt(stat.PopVariance(window, nil))
	}
	return stat.StdDev(window, nil)
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
