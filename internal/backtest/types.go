package backtest

import (
	"time"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/strategy"
)

// TradingDaysPerYear annualizes per-bar Sharpe ratios
const TradingDaysPerYear = 252

// DefaultRollingWindow is the rolling Sharpe lookback in bars
const DefaultRollingWindow = 252

// PerfRow is one bar of the evaluated series. Return and StrategyReturn are
// NaN on the first bar.
type PerfRow struct {
	Bar                core.Bar
	Position           core.Direction
	Return             float64
	StrategyReturn     float64
	CumulativeMarket   float64
	CumulativeStrategy float64
}

// Performance holds the evaluated series and its aggregate metrics
type Performance struct {
	Rows        []PerfRow
	Sharpe      float64 // annualized, 0 when returns have no variance
	MaxDrawdown float64 // most negative peak-to-trough fraction, <= 0
	FinalReturn float64 // growth factor of the strategy curve, 1.15 = +15%
}

// StrategyReturns extracts the strategy return column
func (p *Performance) StrategyReturns() []float64 {
	out := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.StrategyReturn
	}
	return out
}

// TradeMeta is run-level metadata repeated on every trade of a log.
// Performance fields are nil when the log was built without metrics.
type TradeMeta struct {
	Window      int
	NumStd      float64
	Sharpe      *float64
	MaxDrawdown *float64
	FinalReturn *float64
	WinRate     float64
}

// Trade is one completed round trip
type Trade struct {
	EntryTime  time.Time // zero for index-keyed series
	ExitTime   time.Time
	EntryIndex int
	ExitIndex  int
	Direction  core.Direction
	EntryPrice float64
	ExitPrice  float64
	Return     float64
	Duration   int // calendar days, or bars for index-keyed series
	Meta       TradeMeta
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// Stats summarizes a trade log
type Stats struct {
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	LongTrades      int
	ShortTrades     int
	WinRate         float64 // fraction, rounded to 4 places
	AverageReturn   float64
	AverageDuration float64
}

// Result holds the complete backtest output
type Result struct {
	Strategy      string
	Symbol        string
	Window        int
	NumStd        float64
	Fee           float64
	StartDate     time.Time
	EndDate       time.Time
	Series        *strategy.Series
	Performance   *Performance
	RollingSharpe []float64
	Trades        []Trade
	Stats         Stats
}
