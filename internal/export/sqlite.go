package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/newthinker/bandrev/internal/backtest"
	"github.com/newthinker/bandrev/internal/core"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	created_at   TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	window_size  INTEGER NOT NULL,
	num_std      REAL NOT NULL,
	fee          REAL NOT NULL,
	start_date   TEXT,
	end_date     TEXT,
	sharpe       REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	final_return REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	win_rate     REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	direction   TEXT NOT NULL,
	entry_date  TEXT NOT NULL,
	exit_date   TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price  REAL NOT NULL,
	ret         REAL NOT NULL,
	duration    INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// RunSummary is one archived run as stored in SQLite
type RunSummary struct {
	ID          string
	CreatedAt   time.Time
	Strategy    string
	Symbol      string
	Window      int
	NumStd      float64
	Fee         float64
	Sharpe      float64
	MaxDrawdown float64
	FinalReturn float64
	TotalTrades int
	WinRate     float64
}

// SQLiteSink archives run summaries and trade logs in a SQLite database
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrExportFailed, fmt.Errorf("opening %s: %w", path, err))
	}
	// a single writer avoids SQLITE_BUSY under concurrent sweeps
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrExportFailed, fmt.Errorf("creating schema: %w", err))
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// SaveRun stores the summary and trade log of result in one transaction
func (s *SQLiteSink) SaveRun(ctx context.Context, runID string, result *backtest.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrExportFailed, err)
	}
	defer tx.Rollback()

	perf := result.Performance
	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, created_at, strategy, symbol, window_size, num_std, fee, start_date, end_date,
		 sharpe, max_drawdown, final_return, total_trades, win_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), result.Strategy, result.Symbol,
		result.Window, result.NumStd, result.Fee,
		nullableDate(result.StartDate), nullableDate(result.EndDate),
		perf.Sharpe, perf.MaxDrawdown, perf.FinalReturn,
		result.Stats.TotalTrades, result.Stats.WinRate,
	)
	if err != nil {
		return core.WrapError(core.ErrExportFailed, fmt.Errorf("inserting run %s: %w", runID, err))
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades
		(run_id, seq, direction, entry_date, exit_date, entry_price, exit_price, ret, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return core.WrapError(core.ErrExportFailed, err)
	}
	defer stmt.Close()

	for i, rec := range Records(result.Trades) {
		if _, err := stmt.ExecContext(ctx, runID, i, rec.Direction, rec.EntryDate, rec.ExitDate,
			rec.EntryPrice, rec.ExitPrice, rec.Return, rec.Duration); err != nil {
			return core.WrapError(core.ErrExportFailed, fmt.Errorf("inserting trade %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrExportFailed, err)
	}
	return nil
}

// Runs lists archived runs, newest first
func (s *SQLiteSink) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, strategy, symbol, window_size, num_std, fee,
		sharpe, max_drawdown, final_return, total_trades, win_rate
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var created string
		if err := rows.Scan(&r.ID, &created, &r.Strategy, &r.Symbol, &r.Window, &r.NumStd, &r.Fee,
			&r.Sharpe, &r.MaxDrawdown, &r.FinalReturn, &r.TotalTrades, &r.WinRate); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TradeCount returns the number of trades stored for a run
func (s *SQLiteSink) TradeCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func nullableDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format("2006-01-02"), Valid: true}
}
