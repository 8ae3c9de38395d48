// Package metrics exposes run and probe counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "driftwatch"

// Metrics is safe to use as a nil pointer, in which case every call is a
// no-op.
type Metrics struct {
	probes           *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	baselinesCreated prometheus.Counter
	runs             *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: api, result (passed, failed, connection_error, timeout, internal_error)
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probes executed, by API and result",
		}, []string{"api", "result"}),

		probeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Latency of completed probes in seconds",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		}, []string{"api"}),

		baselinesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baselines_created_total",
			Help:      "Baselines established",
		}),

		// Labels: outcome (passed, failed)
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveProbe(api, result string, latencyMS int64, completed bool) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(api, result).Inc()
	if completed {
		m.probeDuration.WithLabelValues(api).Observe(float64(latencyMS) / 1000)
	}
}

func (m *Metrics) BaselineCreated() {
	if m == nil {
		return
	}
	m.baselinesCreated.Inc()
}

func (m *Metrics) RunFinished(passed bool) {
	if m == nil {
		return
	}
	outcome := "passed"
	if !passed {
		outcome = "failed"
	}
	m.runs.WithLabelValues(outcome).Inc()
}
