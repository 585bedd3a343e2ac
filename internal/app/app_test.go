package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/bandrev/internal/config"
	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/export"
	"github.com/newthinker/bandrev/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioPrices = []float64{100, 95, 90, 95, 100, 105, 110, 105, 100}

func writePrices(t *testing.T, dir string, prices []float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Close\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		fmt.Fprintf(&b, "%s,%g\n", start.AddDate(0, 0, i).Format("2006-01-02"), p)
	}
	path := filepath.Join(dir, "TEST.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.Data.Path = writePrices(t, dir, scenarioPrices)
	cfg.Data.Symbol = "TEST"
	cfg.Strategy.Window = 3
	cfg.Strategy.NumStd = 1
	cfg.Strategy.StdMode = "population"
	cfg.Backtest.Fee = 0
	cfg.Backtest.RollingWindow = 3
	cfg.Storage.Path = filepath.Join(dir, "runs")
	cfg.Export.SQLitePath = filepath.Join(dir, "runs.db")
	cfg.Metrics.Textfile = filepath.Join(dir, "metrics", "bandrev.prom")
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg, nil)
	require.NoError(t, err)

	n := 0
	a.newRunID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	return a
}

func TestApp_Backtest(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	req, err := a.Request()
	require.NoError(t, err)

	run, err := a.Backtest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "TEST", run.Result.Symbol)
	require.Len(t, run.Result.Trades, 2)
	assert.Equal(t, "runs/run-1/trade_log_3_1.0.csv", run.ExportPath)
	assert.Equal(t, "runs/run-1/series_3_1.0.csv", run.SeriesPath)

	seriesData, err := os.ReadFile(filepath.Join(cfg.Storage.Path, filepath.FromSlash(run.SeriesPath)))
	require.NoError(t, err)
	series, err := export.DecodeSeriesCSV(seriesData)
	require.NoError(t, err)
	require.Len(t, series, len(scenarioPrices))
	assert.True(t, math.IsNaN(series[2].RollingSharpe))
	assert.False(t, math.IsNaN(series[3].RollingSharpe))
	assert.InDelta(t, run.Result.Performance.FinalReturn, series[len(series)-1].CumulativeStrategy, 1e-12)

	data, err := os.ReadFile(filepath.Join(cfg.Storage.Path, filepath.FromSlash(run.ExportPath)))
	require.NoError(t, err)
	records, err := export.DecodeCSV(data)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	runs, err := a.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	require.NoError(t, a.Close())
	metrics, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `bandrev_backtests_total{status="complete"} 1`)
	assert.Contains(t, string(metrics), `bandrev_trades_total{direction="Long"} 1`)
}

func TestApp_BacktestDateRange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.From = "2024-01-03"
	cfg.Data.To = "2024-01-05"
	a := newTestApp(t, cfg)
	defer a.Close()

	req, err := a.Request()
	require.NoError(t, err)
	run, err := a.Backtest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Result.Series.Len())
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), run.Result.StartDate)
}

func TestApp_BacktestParquetWithoutSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "parquet"
	cfg.Export.SQLitePath = ""
	a := newTestApp(t, cfg)
	defer a.Close()

	req, _ := a.Request()
	run, err := a.Backtest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "runs/run-1/trade_log_3_1.0.parquet", run.ExportPath)
	assert.Equal(t, "runs/run-1/series_3_1.0.parquet", run.SeriesPath)

	_, err = a.Runs(context.Background(), 0)
	assert.True(t, errors.Is(err, core.ErrConfigMissing))
}

func TestApp_ExportDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Enabled = false
	a := newTestApp(t, cfg)
	defer a.Close()

	req, _ := a.Request()
	run, err := a.Backtest(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, run.ExportPath)
	assert.Empty(t, run.SeriesPath)
}

func TestApp_Sweep(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweep.Workers = 2
	a := newTestApp(t, cfg)
	defer a.Close()

	req, _ := a.Request()
	grid := sweep.Grid{Windows: []int{0, 2, 3}, NumStds: []float64{0.5, 1}}
	outcomes, runs, err := a.Sweep(context.Background(), req, grid)
	require.NoError(t, err)
	require.Len(t, outcomes, 6)
	assert.Len(t, runs, 4, "window 0 points fail and are not archived")

	for _, o := range outcomes[4:] {
		assert.True(t, errors.Is(o.Err, core.ErrInvalidParams))
	}

	archived, err := a.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, archived, 4)
}

func TestApp_UnknownStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategy.Name = "macd"
	a := newTestApp(t, cfg)
	defer a.Close()

	req, _ := a.Request()
	_, err := a.Backtest(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrStrategyNotFound))
}

func TestApp_MissingData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Path = filepath.Join(t.TempDir(), "missing.csv")
	a := newTestApp(t, cfg)
	defer a.Close()

	req, _ := a.Request()
	_, err := a.Backtest(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))

	_, _, err = a.Sweep(context.Background(), req, sweep.Grid{Windows: []int{3}, NumStds: []float64{1}})
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))
}

func TestNew_UnknownSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Source = "bloomberg"
	_, err := New(cfg, nil)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}
