// Package metrics collects run statistics and exports them in the Prometheus
// textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crawlstep"

// Metrics holds the collectors of a single run.
type Metrics struct {
	registry       *prometheus.Registry
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	stepsTotal     prometheus.Counter
	runsTotal      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Executed actions by name and outcome.",
			},
			[]string{"action", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Time spent executing an action, random wait excluded.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"action"},
		),
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps entered.",
		}),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished runs by result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.actionsTotal, m.actionDuration, m.stepsTotal, m.runsTotal)
	return m
}

// ObserveAction records one action execution. outcome is the signal name or "error".
func (m *Metrics) ObserveAction(action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) IncStep() {
	if m == nil {
		return
	}
	m.stepsTotal.Inc()
}

// ObserveRun records how the run ended: finished, exit or failed.
func (m *Metrics) ObserveRun(result string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all collectors to path for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %q: %w", path, err)
	}
	return nil
}
