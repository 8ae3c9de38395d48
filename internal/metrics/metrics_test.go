package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveProbe("users", "passed", 120, true)
	m.ObserveProbe("users", "passed", 80, true)
	m.ObserveProbe("users", "timeout", 0, false)
	m.BaselineCreated()
	m.RunFinished(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.probes.WithLabelValues("users", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("users", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.baselinesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.probeDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProbe("x", "passed", 1, true)
		m.BaselineCreated()
		m.RunFinished(true)
	})
}
