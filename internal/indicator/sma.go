package indicator

import "gonum.org/v1/gonum/stat"

// SMA returns the mean of every full trailing window of period prices.
// The result has len(prices)-period+1 values; element j covers
// prices[j : j+period] and is averaged on its own.
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, len(prices)-period+1)
	for j := range result {
		result[j] = stat.Mean(prices[j:j+period], nil)
	}
	return result
}
