package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesTotal      *prometheus.CounterVec
	lastSharpe       *prometheus.GaugeVec
	sweepRuns        prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandrev_backtests_total",
				Help: "Total number of backtests",
			},
			[]string{"status"},
		),

		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bandrev_backtest_duration_seconds",
				Help:    "Backtest duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandrev_trades_total",
				Help: "Total number of completed round trips",
			},
			[]string{"direction"},
		),

		lastSharpe: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bandrev_last_sharpe_ratio",
				Help: "Annualized Sharpe ratio of the most recent backtest",
			},
			[]string{"strategy"},
		),

		sweepRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bandrev_sweep_runs_total",
				Help: "Total number of parameter sets evaluated by sweeps",
			},
		),
	}

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.lastSharpe)
	reg.MustRegister(r.sweepRuns)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTrade counts a completed round trip.
func (r *Registry) RecordTrade(direction string) {
	r.tradesTotal.WithLabelValues(direction).Inc()
}

// SetLastSharpe sets the Sharpe ratio of the latest run of a strategy.
func (r *Registry) SetLastSharpe(strategy string, sharpe float64) {
	r.lastSharpe.WithLabelValues(strategy).Set(sharpe)
}

// RecordSweepRun counts one evaluated parameter set.
func (r *Registry) RecordSweepRun() {
	r.sweepRuns.Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
