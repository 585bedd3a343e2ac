package collector

import (
	"context"
	"time"

	"github.com/newthinker/bandrev/internal/core"
)

// Config holds collector configuration
type Config struct {
	Path     string // file or directory for file-backed sources
	Interval string
	Extra    map[string]any
}

// Collector defines the interface for price history sources
type Collector interface {
	Name() string
	Init(cfg Config) error

	// FetchHistory returns the close series of symbol between start and end,
	// inclusive, sorted by time. Zero bounds are unbounded.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)
}

// FilterRange keeps timestamped bars inside [start, end]. Index-keyed bars
// carry no dates and are returned unchanged.
func FilterRange(bars []core.Bar, start, end time.Time) []core.Bar {
	if start.IsZero() && end.IsZero() {
		return bars
	}
	out := make([]core.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.HasTime() {
			out = append(out, b)
			continue
		}
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
