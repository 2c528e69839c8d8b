// Package jobs provides metrics for the service's periodic background work:
// the idle search session sweep and the in-process rate limit cleanup.
package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricBackgroundJobsTotal    = "background_jobs_total"
	MetricBackgroundJobsDuration = "background_jobs_duration_seconds"
	MetricBackgroundJobItems     = "background_job_items_total"
)

// Status constants for job completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics counts background job runs, their duration and how many items
// (sessions ended, windows dropped) each run removed. Safe for concurrent use.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec
	jobsDuration *prometheus.HistogramVec
	jobItems     *prometheus.CounterVec
}

// NewMetrics creates unregistered background job metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBackgroundJobsTotal,
				Help: "Total number of background job runs by type and status",
			},
			[]string{"job_type", "status"},
		),
		// Sweeps are in-memory map walks; buckets start at a millisecond.
		jobsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricBackgroundJobsDuration,
				Help:    "Histogram of background job run duration in seconds by job type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"job_type"},
		),
		jobItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBackgroundJobItems,
				Help: "Total number of items removed by background jobs by type",
			},
			[]string{"job_type"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncJobsTotal increments the run counter for jobType.
func (m *Metrics) IncJobsTotal(jobType, status string) {
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
}

// ObserveJobDuration records a run duration sample.
func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
}

// AddJobItems adds n removed items for jobType. Non-positive n is ignored.
func (m *Metrics) AddJobItems(jobType string, n int) {
	if n > 0 {
		m.jobItems.WithLabelValues(jobType).Add(float64(n))
	}
}

// RecordRun records one successful run of jobType that started at start and
// removed n items.
func (m *Metrics) RecordRun(jobType string, start time.Time, n int) {
	m.IncJobsTotal(jobType, StatusSuccess)
	m.ObserveJobDuration(jobType, time.Since(start).Seconds())
	m.AddJobItems(jobType, n)
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsTotal,
		m.jobsDuration,
		m.jobItems,
	}
}
