package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/newthinker/bandrev/internal/backtest"
	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/strategy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent runs when no limit is configured
const DefaultWorkers = 4

// Params is one point of the parameter grid
type Params struct {
	Window int
	NumStd float64
}

// Grid is the cartesian product of windows and band widths
type Grid struct {
	Windows []int
	NumStds []float64
}

// Params expands the grid in window-major order
func (g Grid) Params() []Params {
	out := make([]Params, 0, len(g.Windows)*len(g.NumStds))
	for _, w := range g.Windows {
		for _, k := range g.NumStds {
			out = append(out, Params{Window: w, NumStd: k})
		}
	}
	return out
}

// Outcome is the result of one grid point. Err is set when that point
// could not be evaluated; the rest of the sweep still runs.
type Outcome struct {
	Params Params
	Result *backtest.Result
	Err    error
}

// Builder creates a fresh strategy for a grid point
type Builder func(p Params) (strategy.Strategy, error)

// Recorder counts evaluated grid points and receives the Sharpe of the
// best point once the sweep is ranked.
type Recorder interface {
	RecordSweepRun()
	SetLastSharpe(strategy string, sharpe float64)
}

// Runner evaluates a grid over one price series with a bounded worker pool
type Runner struct {
	backtester *backtest.Backtester
	build      Builder
	workers    int
	logger     *zap.Logger
	recorder   Recorder
}

// Option configures a Runner
type Option func(*Runner)

// WithWorkers bounds the number of concurrent runs
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a sweep runner
func NewRunner(bt *backtest.Backtester, build Builder, opts ...Option) *Runner {
	r := &Runner{
		backtester: bt,
		build:      build,
		workers:    DefaultWorkers,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates every grid point over bars and returns the outcomes ranked
// by Rank. Only cancellation of ctx aborts the sweep.
func (r *Runner) Run(ctx context.Context, grid Grid, bars []core.Bar, req backtest.Request) ([]Outcome, error) {
	params := grid.Params()
	if len(params) == 0 {
		return nil, core.WrapError(core.ErrInvalidParams, errors.New("sweep grid is empty"))
	}

	outcomes := make([]Outcome, len(params))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, p := range params {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.runOne(gctx, p, bars, req)
			if errors.Is(outcomes[i].Err, context.Canceled) || errors.Is(outcomes[i].Err, context.DeadlineExceeded) {
				return outcomes[i].Err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(outcomes)
	if best := outcomes[0]; r.recorder != nil && best.Err == nil {
		r.recorder.SetLastSharpe(best.Result.Strategy, best.Result.Performance.Sharpe)
	}
	r.logger.Info("sweep complete",
		zap.Int("grid_points", len(params)),
		zap.Int("workers", r.workers),
		zap.Int("failed", countFailed(outcomes)),
	)
	return outcomes, nil
}

func (r *Runner) runOne(ctx context.Context, p Params, bars []core.Bar, req backtest.Request) Outcome {
	out := Outcome{Params: p}

	strat, err := r.build(p)
	if err != nil {
		out.Err = err
		return out
	}

	out.Result, out.Err = r.backtester.RunBars(ctx, strat, bars, req)
	if r.recorder != nil {
		r.recorder.RecordSweepRun()
	}
	if out.Err != nil {
		r.logger.Debug("grid point failed",
			zap.Int("window", p.Window),
			zap.Float64("num_std", p.NumStd),
			zap.Error(out.Err),
		)
	}
	return out
}

// Rank orders outcomes best first: higher Sharpe, then higher final
// return, then smaller window and band width. Failed points sort last.
func Rank(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i], outcomes[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err == nil {
			pa, pb := a.Result.Performance, b.Result.Performance
			if pa.Sharpe != pb.Sharpe {
				return pa.Sharpe > pb.Sharpe
			}
			if pa.FinalReturn != pb.FinalReturn {
				return pa.FinalReturn > pb.FinalReturn
			}
		}
		if a.Params.Window != b.Params.Window {
			return a.Params.Window < b.Params.Window
		}
		return a.Params.NumStd < b.Params.NumStd
	})
}

// Best returns the top ranked successful outcome
func Best(outcomes []Outcome) (Outcome, error) {
	for _, o := range outcomes {
		if o.Err == nil {
			return o, nil
		}
	}
	return Outcome{}, core.WrapError(core.ErrNoData, fmt.Errorf("none of %d grid points succeeded", len(outcomes)))
}

func countFailed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
