package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/strategy"
)

// replay is the state carried while walking a series for round trips
type replay struct {
	inTrade   bool
	direction core.Direction
	entry     core.Bar
}

// BuildTradeLog replays the signal and exit columns of series into
// completed round trips. An entry still open at the end of the series is
// dropped. perf may be nil, in which case the metric fields of every
// trade's Meta stay nil.
func BuildTradeLog(series *strategy.Series, window int, numStd float64, perf *Performance) []Trade {
	if series.Len() == 0 {
		return nil
	}

	var trades []Trade
	var st replay

	for _, row := range series.Rows {
		switch {
		case !st.inTrade && row.Signal != core.Flat:
			st = replay{inTrade: true, direction: row.Signal, entry: row.Bar}
		case st.inTrade && row.Exit:
			trades = append(trades, closeTrade(st, row.Bar))
			st = replay{}
		}
	}

	if len(trades) == 0 {
		return nil
	}

	meta := TradeMeta{
		Window:  window,
		NumStd:  numStd,
		WinRate: winRate(trades),
	}
	if perf != nil {
		sharpe, dd, final := perf.Sharpe, perf.MaxDrawdown, perf.FinalReturn
		meta.Sharpe = &sharpe
		meta.MaxDrawdown = &dd
		meta.FinalReturn = &final
	}
	for i := range trades {
		trades[i].Meta = meta
	}
	return trades
}

func closeTrade(st replay, exit core.Bar) Trade {
	t := Trade{
		EntryTime:  st.entry.Time,
		ExitTime:   exit.Time,
		EntryIndex: st.entry.Index,
		ExitIndex:  exit.Index,
		Direction:  st.direction,
		EntryPrice: st.entry.Close,
		ExitPrice:  exit.Close,
	}
	if st.direction == core.Long {
		t.Return = (t.ExitPrice - t.EntryPrice) / t.EntryPrice
	} else {
		t.Return = (t.EntryPrice - t.ExitPrice) / t.EntryPrice
	}
	t.Duration = duration(st.entry, exit)
	return t
}

// duration is whole calendar days between timestamped bars, or the index
// distance otherwise.
func duration(entry, exit core.Bar) int {
	if entry.HasTime() && exit.HasTime() {
		return int(exit.Time.Sub(entry.Time) / (24 * time.Hour))
	}
	return exit.Index - entry.Index
}

func winRate(trades []Trade) float64 {
	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}
	return roundTo(float64(wins)/float64(len(trades)), 4)
}

// roundTrip is a trade boundary derived from position transitions
type roundTrip struct {
	direction  core.Direction
	entryIndex int
	exitIndex  int
}

// CheckConsistency compares the trade log with the round trips implied by
// the position column. It reports divergence without reconciling it.
func CheckConsistency(series *strategy.Series, trades []Trade) error {
	trips := positionRoundTrips(series)
	if len(trips) != len(trades) {
		return core.WrapError(core.ErrInconsistentTrades,
			fmt.Errorf("position series implies %d round trips, trade log has %d", len(trips), len(trades)))
	}
	for i, trip := range trips {
		t := trades[i]
		if trip.direction != t.Direction || trip.entryIndex != t.EntryIndex || trip.exitIndex != t.ExitIndex {
			return core.WrapError(core.ErrInconsistentTrades,
				fmt.Errorf("trade %d: log has %s %d->%d, positions imply %s %d->%d",
					i, t.Direction, t.EntryIndex, t.ExitIndex, trip.direction, trip.entryIndex, trip.exitIndex))
		}
	}
	return nil
}

func positionRoundTrips(series *strategy.Series) []roundTrip {
	if series.Len() == 0 {
		return nil
	}

	var trips []roundTrip
	var open *roundTrip
	prev := core.Flat

	for _, row := range series.Rows {
		pos := row.Position
		if pos != prev {
			if open != nil {
				open.exitIndex = row.Bar.Index
				trips = append(trips, *open)
				open = nil
			}
			if pos != core.Flat {
				open = &roundTrip{direction: pos, entryIndex: row.Bar.Index}
			}
		}
		prev = pos
	}
	return trips
}
