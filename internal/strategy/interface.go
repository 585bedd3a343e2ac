package strategy

import (
	"github.com/newthinker/bandrev/internal/core"
)

// Config holds strategy parameters keyed by name, e.g. "window", "num_std"
type Config struct {
	Params map[string]any
}

// Strategy turns a price series into an augmented signal series
type Strategy interface {
	Name() string
	Description() string
	Generate(bars []core.Bar) (*Series, error)
}

// Factory builds a configured strategy instance. Each run gets its own
// instance so independent runs share no state.
type Factory func(cfg Config) (Strategy, error)

// Int returns an integer parameter, accepting any numeric representation
func (c Config) Int(key string, def int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns a float parameter, accepting any numeric representation
func (c Config) Float(key string, def float64) float64 {
	switch v := c.Params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// String returns a string parameter
func (c Config) String(key string, def string) string {
	if v, ok := c.Params[key].(string); ok {
		return v
	}
	return def
}
