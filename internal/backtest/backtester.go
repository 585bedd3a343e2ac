package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/strategy"
	"go.uber.org/zap"
)

// HistoryProvider defines the interface for fetching a historical price series
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)
}

// Recorder receives run metrics
type Recorder interface {
	RecordBacktest(status string, duration float64)
	RecordTrade(direction string)
	SetLastSharpe(strategy string, sharpe float64)
}

// Request describes one backtest run
type Request struct {
	Symbol        string
	Start         time.Time // zero means unbounded
	End           time.Time
	Fee           float64
	RollingWindow int // 0 means DefaultRollingWindow
}

// Backtester runs strategy backtests against historical data
type Backtester struct {
	provider HistoryProvider
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(b *Backtester) {
		b.recorder = r
	}
}

// New creates a new Backtester with the given history provider
func New(provider HistoryProvider, opts ...Option) *Backtester {
	b := &Backtester{
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run fetches the requested history and backtests strat over it
func (b *Backtester) Run(ctx context.Context, strat strategy.Strategy, req Request) (*Result, error) {
	bars, err := b.Fetch(ctx, req)
	if err != nil {
		if b.provider != nil {
			b.record("failed", 0)
		}
		return nil, err
	}

	result, err := b.RunBars(ctx, strat, bars, req)
	if err != nil {
		return nil, err
	}
	if b.recorder != nil {
		b.recorder.SetLastSharpe(result.Strategy, result.Performance.Sharpe)
	}
	return result, nil
}

// Fetch loads the requested history. Failures other than cancellation,
// an empty range included, are reported as ErrDataUnavailable; an empty
// range also matches ErrNoData.
func (b *Backtester) Fetch(ctx context.Context, req Request) ([]core.Bar, error) {
	if b.provider == nil {
		return nil, core.WrapError(core.ErrDataUnavailable, errors.New("no history provider configured"))
	}

	bars, err := b.provider.FetchHistory(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, core.ErrDataUnavailable) {
			err = core.WrapError(core.ErrDataUnavailable, err)
		}
		return nil, err
	}

	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrDataUnavailable,
			core.WrapError(core.ErrNoData, fmt.Errorf("no bars for %q", req.Symbol)))
	}
	return bars, nil
}

// RunBars backtests strat over an already loaded price series. The
// last-Sharpe gauge is set by Run and sweep.Runner, not here.
func (b *Backtester) RunBars(ctx context.Context, strat strategy.Strategy, bars []core.Bar, req Request) (*Result, error) {
	start := time.Now()

	result, err := b.runBars(ctx, strat, bars, req)
	if err != nil {
		b.record("failed", time.Since(start).Seconds())
		return nil, err
	}

	b.record("complete", time.Since(start).Seconds())
	if b.recorder != nil {
		for _, t := range result.Trades {
			b.recorder.RecordTrade(t.Direction.String())
		}
	}

	b.logger.Info("backtest complete",
		zap.String("strategy", result.Strategy),
		zap.String("symbol", result.Symbol),
		zap.Int("window", result.Window),
		zap.Float64("num_std", result.NumStd),
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("sharpe", result.Performance.Sharpe),
		zap.Float64("max_drawdown", result.Performance.MaxDrawdown),
		zap.Float64("final_return", result.Performance.FinalReturn),
	)
	return result, nil
}

func (b *Backtester) runBars(ctx context.Context, strat strategy.Strategy, bars []core.Bar, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series, err := strat.Generate(bars)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perf, err := Evaluate(series, req.Fee)
	if err != nil {
		return nil, err
	}

	rollingWindow := req.RollingWindow
	if rollingWindow <= 0 {
		rollingWindow = DefaultRollingWindow
	}

	trades := BuildTradeLog(series, series.Window, series.NumStd, perf)
	if err := CheckConsistency(series, trades); err != nil {
		b.logger.Warn("trade log diverges from position series",
			zap.String("strategy", series.Strategy),
			zap.Error(err),
		)
	}

	return &Result{
		Strategy:      series.Strategy,
		Symbol:        req.Symbol,
		Window:        series.Window,
		NumStd:        series.NumStd,
		Fee:           req.Fee,
		StartDate:     bars[0].Time,
		EndDate:       bars[len(bars)-1].Time,
		Series:        series,
		Performance:   perf,
		RollingSharpe: RollingSharpe(perf.StrategyReturns(), rollingWindow),
		Trades:        trades,
		Stats:         CalculateStats(trades),
	}, nil
}

func (b *Backtester) record(status string, duration float64) {
	if b.recorder != nil {
		b.recorder.RecordBacktest(status, duration)
	}
}
