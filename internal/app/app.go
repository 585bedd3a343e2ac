package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/newthinker/bandrev/internal/backtest"
	"github.com/newthinker/bandrev/internal/collector"
	"github.com/newthinker/bandrev/internal/collector/csvfile"
	"github.com/newthinker/bandrev/internal/collector/yahoo"
	"github.com/newthinker/bandrev/internal/config"
	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/export"
	"github.com/newthinker/bandrev/internal/metrics"
	"github.com/newthinker/bandrev/internal/storage/archive"
	"github.com/newthinker/bandrev/internal/strategy"
	"github.com/newthinker/bandrev/internal/strategy/bollinger"
	"github.com/newthinker/bandrev/internal/sweep"
	"go.uber.org/zap"
)

// Run is one completed and archived backtest
type Run struct {
	ID         string
	Result     *backtest.Result
	ExportPath string // trade log
	SeriesPath string // per-bar series
}

// App wires data sources, strategies, the backtester and artifact sinks
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	collectors *collector.Registry
	strategies *strategy.Engine
	metrics    *metrics.Registry
	backtester *backtest.Backtester
	exporter   *export.Exporter
	sink       *export.SQLiteSink
	newRunID   func() string
}

// New creates a new App from a validated config
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		collectors: collector.NewRegistry(),
		strategies: strategy.NewEngine(logger),
		metrics:    metrics.NewRegistry(),
		newRunID:   uuid.NewString,
	}

	a.collectors.Register(csvfile.New(cfg.Data.Path, logger))
	a.collectors.Register(yahoo.New(logger))
	collectorCfg := collector.Config{
		Path:     cfg.Data.Path,
		Interval: cfg.Data.Interval,
		Extra:    map[string]any{"base_url": cfg.Data.BaseURL},
	}

	source, ok := a.collectors.Get(cfg.Data.Source)
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown data source %q", cfg.Data.Source))
	}
	if err := source.Init(collectorCfg); err != nil {
		return nil, err
	}

	a.strategies.Register(bollinger.Name, bollinger.Factory)

	a.backtester = backtest.New(source,
		backtest.WithLogger(logger),
		backtest.WithRecorder(a.metrics),
	)

	if cfg.Export.Enabled {
		format, err := export.ParseFormat(cfg.Export.Format)
		if err != nil {
			return nil, err
		}
		store, err := archive.New(archive.Config{
			Type: cfg.Storage.Type,
			Path: cfg.Storage.Path,
			S3: archive.S3Config{
				Bucket:    cfg.Storage.S3.Bucket,
				Endpoint:  cfg.Storage.S3.Endpoint,
				Region:    cfg.Storage.S3.Region,
				AccessKey: cfg.Storage.S3.AccessKey,
				SecretKey: cfg.Storage.S3.SecretKey,
				Prefix:    cfg.Storage.S3.Prefix,
			},
		})
		if err != nil {
			return nil, err
		}
		a.exporter = export.NewExporter(store, format, logger)
	}

	if cfg.Export.SQLitePath != "" {
		sink, err := export.OpenSQLite(cfg.Export.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.sink = sink
	}

	return a, nil
}

// Request builds the backtest request described by the config
func (a *App) Request() (backtest.Request, error) {
	start, end, err := a.cfg.Data.DateRange()
	if err != nil {
		return backtest.Request{}, err
	}
	return backtest.Request{
		Symbol:        a.cfg.Data.Symbol,
		Start:         start,
		End:           end,
		Fee:           a.cfg.Backtest.Fee,
		RollingWindow: a.cfg.Backtest.RollingWindow,
	}, nil
}

// Strategy builds the configured strategy
func (a *App) Strategy() (strategy.Strategy, error) {
	return a.strategies.New(a.cfg.Strategy.Name, strategy.Config{Params: a.cfg.Strategy.Params()})
}

// Backtest runs the configured strategy once and archives the result
func (a *App) Backtest(ctx context.Context, req backtest.Request) (*Run, error) {
	strat, err := a.Strategy()
	if err != nil {
		return nil, err
	}

	result, err := a.backtester.Run(ctx, strat, req)
	if err != nil {
		return nil, err
	}

	return a.archive(ctx, result)
}

// Sweep loads the series once and evaluates every point of grid over it.
// Successful points are archived like single runs.
func (a *App) Sweep(ctx context.Context, req backtest.Request, grid sweep.Grid) ([]sweep.Outcome, []*Run, error) {
	bars, err := a.backtester.Fetch(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	runner := sweep.NewRunner(a.backtester, a.sweepBuilder(),
		sweep.WithWorkers(a.cfg.Sweep.Workers),
		sweep.WithLogger(a.logger),
		sweep.WithRecorder(a.metrics),
	)
	outcomes, err := runner.Run(ctx, grid, bars, req)
	if err != nil {
		return nil, nil, err
	}

	var runs []*Run
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		run, err := a.archive(ctx, o.Result)
		if err != nil {
			return outcomes, runs, err
		}
		runs = append(runs, run)
	}
	return outcomes, runs, nil
}

// sweepBuilder builds the configured strategy with window and band width
// taken from the grid point.
func (a *App) sweepBuilder() sweep.Builder {
	return func(p sweep.Params) (strategy.Strategy, error) {
		params := a.cfg.Strategy.Params()
		params["window"] = p.Window
		params["num_std"] = p.NumStd
		return a.strategies.New(a.cfg.Strategy.Name, strategy.Config{Params: params})
	}
}

func (a *App) archive(ctx context.Context, result *backtest.Result) (*Run, error) {
	run := &Run{ID: a.newRunID(), Result: result}

	if a.exporter != nil {
		path, err := a.exporter.Export(ctx, run.ID, result)
		if err != nil {
			return nil, err
		}
		run.ExportPath = path

		if run.SeriesPath, err = a.exporter.ExportSeries(ctx, run.ID, result); err != nil {
			return nil, err
		}
	}

	if a.sink != nil {
		if err := a.sink.SaveRun(ctx, run.ID, result); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// Runs lists archived runs from the SQLite sink
func (a *App) Runs(ctx context.Context, limit int) ([]export.RunSummary, error) {
	if a.sink == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("export.sqlite_path is not configured"))
	}
	return a.sink.Runs(ctx, limit)
}

// Metrics returns the metrics registry
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Close writes the metrics textfile and releases the SQLite sink
func (a *App) Close() error {
	var errs []error
	if a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			errs = append(errs, err)
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
