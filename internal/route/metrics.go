package route

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricRouteRequestsTotal counts route resolutions by outcome.
const MetricRouteRequestsTotal = "route_requests_total"

// Route outcomes.
const (
	OutcomePrimary  = "primary"
	OutcomeFallback = "fallback"
	OutcomeSkipped  = "skipped"
)

// Metrics contains Prometheus metrics for route resolution.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
}

// NewMetrics creates unregistered route metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRouteRequestsTotal,
				Help: "Total number of route resolutions by outcome (primary, fallback, skipped)",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.requestsTotal)
}

// IncRequest increments the counter for outcome.
func (m *Metrics) IncRequest(outcome string) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requestsTotal}
}
