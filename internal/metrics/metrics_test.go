package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/UninstallAll/AIDAscraper/internal/metrics"
)

func TestMetrics_RecordTransition(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.RecordTransition("pending", "running", 0, false)
	m.RecordTransition("pending", "running", 0, false)
	m.RecordTransition("running", "completed", 12, true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.JobTransitionsTotal.WithLabelValues("pending", "running")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsRunning), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDurationSeconds))
}

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.RecordJobCreated()
	m.RecordProgressAnomaly()
	m.RecordDispatchFailure()
	m.RecordStalledJobFailed()
	m.RecordValidationFailure("create")

	assert.InDelta(t, 1, testutil.ToFloat64(m.JobsCreatedTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProgressAnomaliesTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DispatchFailuresTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StalledJobsFailedTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ValidationFailuresTotal.WithLabelValues("create")), 0)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.RecordJobCreated()
		m.RecordTransition("pending", "cancelled", 0, false)
		m.RecordProgressAnomaly()
		m.RecordDispatchFailure()
		m.RecordStalledJobFailed()
		m.RecordValidationFailure("import")
	})
}
