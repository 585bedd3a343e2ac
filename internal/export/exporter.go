package export

import (
	"context"
	"fmt"

	"github.com/newthinker/bandrev/internal/backtest"
	"github.com/newthinker/bandrev/internal/core"
	"github.com/newthinker/bandrev/internal/storage/archive"
	"go.uber.org/zap"
)

// Exporter writes trade logs to artifact storage
type Exporter struct {
	storage archive.Storage
	format  Format
	logger  *zap.Logger
}

// NewExporter creates an exporter writing format files to storage
func NewExporter(storage archive.Storage, format Format, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{storage: storage, format: format, logger: logger}
}

// Export writes the trade log of result under the run directory and
// returns the artifact path.
func (e *Exporter) Export(ctx context.Context, runID string, result *backtest.Result) (string, error) {
	data, err := Encode(result.Trades, e.format)
	if err != nil {
		return "", err
	}

	path := archive.RunPath(runID, FileName(result.Window, result.NumStd, e.format))
	if err := e.storage.Write(ctx, path, data); err != nil {
		return "", core.WrapError(core.ErrExportFailed, fmt.Errorf("writing %s: %w", path, err))
	}

	e.logger.Info("trade log exported",
		zap.String("run_id", runID),
		zap.String("path", path),
		zap.Int("trades", len(result.Trades)),
		zap.Int("bytes", len(data)),
	)
	return path, nil
}

// ExportSeries writes the per-bar series of result (bands, signals,
// returns, equity curves and rolling Sharpe) next to the trade log and
// returns the artifact path.
func (e *Exporter) ExportSeries(ctx context.Context, runID string, result *backtest.Result) (string, error) {
	data, err := EncodeSeries(result, e.format)
	if err != nil {
		return "", err
	}

	path := archive.RunPath(runID, SeriesFileName(result.Window, result.NumStd, e.format))
	if err := e.storage.Write(ctx, path, data); err != nil {
		return "", core.WrapError(core.ErrExportFailed, fmt.Errorf("writing %s: %w", path, err))
	}

	e.logger.Debug("series exported",
		zap.String("run_id", runID),
		zap.String("path", path),
		zap.Int("bars", result.Series.Len()),
	)
	return path, nil
}
