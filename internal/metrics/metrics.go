// Package metrics provides Prometheus metrics for site validation and the job lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all scraper metrics.
	Namespace = "scraper"

	subsystemJobs  = "jobs"
	subsystemSites = "sites"
)

// Metrics holds the Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	JobsCreatedTotal        prometheus.Counter
	JobTransitionsTotal     *prometheus.CounterVec
	JobDurationSeconds      *prometheus.HistogramVec
	JobsRunning             prometheus.Gauge
	ProgressAnomaliesTotal  prometheus.Counter
	DispatchFailuresTotal   prometheus.Counter
	ValidationFailuresTotal *prometheus.CounterVec
	StalledJobsFailedTotal  prometheus.Counter
}

// New creates and registers all collectors on reg, or on the default registerer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initJobMetrics(factory)
	m.initSiteMetrics(factory)

	return m
}

func (m *Metrics) initJobMetrics(factory promauto.Factory) {
	m.JobsCreatedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemJobs,
		Name:      "created_total",
		Help:      "Total number of scrape jobs created",
	})

	m.JobTransitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemJobs,
			Name:      "transitions_total",
			Help:      "Job status transitions by origin and destination status",
		},
		[]string{"from", "to"},
	)

	m.JobDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemJobs,
			Name:      "duration_seconds",
			Help:      "Run time of jobs that reached a terminal status after starting",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 15), // 1s to ~4.5h
		},
		[]string{"status"},
	)

	m.JobsRunning = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystemJobs,
		Name:      "running",
		Help:      "Number of jobs this instance moved to running and has not yet seen finish",
	})

	m.ProgressAnomaliesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemJobs,
		Name:      "progress_anomalies_total",
		Help:      "Progress reports discarded because the job was not running",
	})

	m.DispatchFailuresTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemJobs,
		Name:      "dispatch_failures_total",
		Help:      "Jobs failed because the executor could not be engaged",
	})

	m.StalledJobsFailedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystemJobs,
		Name:      "stalled_failed_total",
		Help:      "Running jobs failed by the stalled-job sweep",
	})
}

func (m *Metrics) initSiteMetrics(factory promauto.Factory) {
	m.ValidationFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemSites,
			Name:      "validation_failures_total",
			Help:      "Site configurations rejected by validation, by operation",
		},
		[]string{"operation"},
	)
}

// RecordJobCreated counts a new pending job.
func (m *Metrics) RecordJobCreated() {
	if m == nil {
		return
	}
	m.JobsCreatedTotal.Inc()
}

// RecordTransition counts a status change and keeps the running gauge and
// duration histogram current.
func (m *Metrics) RecordTransition(from, to string, durationSeconds float64, timed bool) {
	if m == nil {
		return
	}
	m.JobTransitionsTotal.WithLabelValues(from, to).Inc()
	if to == "running" {
		m.JobsRunning.Inc()
	}
	if from == "running" {
		m.JobsRunning.Dec()
	}
	if timed {
		m.JobDurationSeconds.WithLabelValues(to).Observe(durationSeconds)
	}
}

func (m *Metrics) RecordProgressAnomaly() {
	if m == nil {
		return
	}
	m.ProgressAnomaliesTotal.Inc()
}

func (m *Metrics) RecordDispatchFailure() {
	if m == nil {
		return
	}
	m.DispatchFailuresTotal.Inc()
}

func (m *Metrics) RecordStalledJobFailed() {
	if m == nil {
		return
	}
	m.StalledJobsFailedTotal.Inc()
}

// RecordValidationFailure counts a rejected configuration for operation (create, update, import).
func (m *Metrics) RecordValidationFailure(operation string) {
	if m == nil {
		return
	}
	m.ValidationFailuresTotal.WithLabelValues(operation).Inc()
}
