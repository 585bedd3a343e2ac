package csvfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/newthinker/bandrev/internal/collector"
	"github.com/newthinker/bandrev/internal/core"
	"go.uber.org/zap"
)

// columnAliases maps normalized source headers onto the canonical columns
var columnAliases = map[string]string{
	"4. close":  "close",
	"timestamp": "date",
	"datetime":  "date",
}

// dateLayouts are tried in order when parsing the date column
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// CSV loads close series from CSV files. Path may name a single file or a
// directory holding one <symbol>.csv per symbol.
type CSV struct {
	path   string
	logger *zap.Logger
}

// New creates a CSV collector rooted at path
func New(path string, logger ...*zap.Logger) *CSV {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &CSV{path: path, logger: l}
}

func (c *CSV) Name() string {
	return "csv"
}

func (c *CSV) Init(cfg collector.Config) error {
	if cfg.Path != "" {
		c.path = cfg.Path
	}
	if c.path == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("csv collector requires a path"))
	}
	return nil
}

// FetchHistory reads the file for symbol and returns its close series
func (c *CSV) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := c.resolve(symbol)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("opening %s: %w", file, err))
	}
	defer f.Close()

	records, err := gocsv.CSVToMaps(f)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("reading %s: %w", file, err))
	}

	if len(records) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no rows", file))
	}

	bars, err := parseRecords(records)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("%s: %w", file, err))
	}

	loaded := len(bars)
	bars = collector.FilterRange(bars, start, end)
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s: no rows in requested range", file))
	}

	c.logger.Debug("loaded csv history",
		zap.String("file", file),
		zap.String("symbol", symbol),
		zap.Int("rows", loaded),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

func (c *CSV) resolve(symbol string) (string, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return c.path, nil
	}
	if symbol == "" {
		return "", fmt.Errorf("%s is a directory and no symbol was given", c.path)
	}
	return filepath.Join(c.path, symbol+".csv"), nil
}

func cleanHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// normalizeHeader lowercases and trims a column name and applies aliases
func normalizeHeader(h string) string {
	h = cleanHeader(h)
	if alias, ok := columnAliases[h]; ok {
		return alias
	}
	return h
}

func parseRecords(records []map[string]string) ([]core.Bar, error) {
	normalized := make([]map[string]string, len(records))
	for i, rec := range records {
		m := make(map[string]string, len(rec))
		aliased := make(map[string]string)
		for k, v := range rec {
			key := normalizeHeader(k)
			if key != cleanHeader(k) {
				aliased[key] = strings.TrimSpace(v)
				continue
			}
			m[key] = strings.TrimSpace(v)
		}
		// a literal column wins over an aliased one
		for k, v := range aliased {
			if _, ok := m[k]; !ok {
				m[k] = v
			}
		}
		normalized[i] = m
	}

	if _, ok := normalized[0]["close"]; !ok {
		return nil, errors.New("no close column")
	}
	_, dated := normalized[0]["date"]

	bars := make([]core.Bar, 0, len(normalized))
	for i, rec := range normalized {
		raw := rec["close"]
		if raw == "" {
			continue
		}
		closePrice, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid close %q", i+1, raw)
		}

		bar := core.Bar{Close: closePrice}
		if dated {
			ts, err := parseDate(rec["date"])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			bar.Time = ts
		}
		bars = append(bars, bar)
	}

	if dated {
		sort.SliceStable(bars, func(i, j int) bool {
			return bars[i].Time.Before(bars[j].Time)
		})
	}
	for i := range bars {
		bars[i].Index = i
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
