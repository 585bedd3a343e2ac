package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/bandrev/internal/core"
	"go.uber.org/zap"
)

// Engine is a registry of named strategy factories
type Engine struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewEngine creates a new strategy engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a strategy factory under name
func (e *Engine) Register(name string, f Factory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.factories[name] = f
	e.logger.Debug("strategy registered", zap.String("strategy", name))
}

// New builds the named strategy from cfg
func (e *Engine) New(name string, cfg Config) (Strategy, error) {
	e.mu.RLock()
	f, ok := e.factories[name]
	e.mu.RUnlock()
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("unknown strategy %q", name))
	}
	return f(cfg)
}

// Names returns the registered strategy names in sorted order
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.factories))
	for name := range e.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
