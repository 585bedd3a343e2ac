package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CalculateStats computes summary statistics from a trade log
func CalculateStats(trades []Trade) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	var s Stats
	var totalReturn, totalDuration float64
	for _, t := range trades {
		totalReturn += t.Return
		totalDuration += float64(t.Duration)
		if t.IsWin() {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
		if t.Direction > 0 {
			s.LongTrades++
		} else {
			s.ShortTrades++
		}
	}

	n := float64(len(trades))
	s.TotalTrades = len(trades)
	s.WinRate = roundTo(float64(s.WinningTrades)/n, 4)
	s.AverageReturn = totalReturn / n
	s.AverageDuration = totalDuration / n
	return s
}

// calculateMaxDrawdown finds the most negative decline of curve from its
// running peak, as a fraction <= 0.
func calculateMaxDrawdown(curve []float64) float64 {
	var maxDD float64
	peak := math.Inf(-1)

	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio annualizes mean/std of the defined (non-NaN) returns.
// Risk-free rate is 0. Returns 0 when the ratio is undefined.
func calculateSharpeRatio(returns []float64) float64 {
	defined := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) {
			defined = append(defined, r)
		}
	}
	return sharpe(defined)
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, stdDev := stat.MeanStdDev(returns, nil)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}
	return mean / stdDev * math.Sqrt(TradingDaysPerYear)
}

// RollingSharpe applies the Sharpe formula over each trailing window of
// returns. The result is aligned with returns; bars without a full window of
// defined returns are NaN.
func RollingSharpe(returns []float64, window int) []float64 {
	out := make([]float64, len(returns))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 {
		return out
	}

	for i := window - 1; i < len(returns); i++ {
		w := returns[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = sharpe(w)
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
