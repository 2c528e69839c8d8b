package engagement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricLoadsTotal      = "engagement_loads_total"
	MetricLoadDuration    = "engagement_load_duration_seconds"
	MetricSessionsActive  = "engagement_sessions_active"
	MetricSessionsEvicted = "engagement_sessions_evicted_total"
)

// Load outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics contains Prometheus metrics for the engagement cache.
type Metrics struct {
	loadsTotal      *prometheus.CounterVec
	loadDuration    prometheus.Histogram
	sessionsActive  prometheus.Gauge
	sessionsEvicted prometheus.Counter
}

// NewMetrics creates unregistered engagement metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLoadsTotal,
				Help: "Total number of engagement cache bulk loads by outcome",
			},
			[]string{"outcome"},
		),
		loadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricLoadDuration,
				Help:    "Histogram of engagement cache bulk load duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricSessionsActive,
				Help: "Number of search sessions holding an engagement cache",
			},
		),
		sessionsEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricSessionsEvicted,
				Help: "Total number of search sessions evicted to stay under the session cap",
			},
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

// ObserveLoad records the outcome and duration of a bulk load.
func (m *Metrics) ObserveLoad(err error, d time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.loadsTotal.WithLabelValues(outcome).Inc()
	m.loadDuration.Observe(d.Seconds())
}

// SetSessionsActive sets the active session gauge.
func (m *Metrics) SetSessionsActive(n int) {
	m.sessionsActive.Set(float64(n))
}

// IncSessionsEvicted counts a session evicted by the cap.
func (m *Metrics) IncSessionsEvicted() {
	m.sessionsEvicted.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.loadsTotal,
		m.loadDuration,
		m.sessionsActive,
		m.sessionsEvicted,
	}
}
