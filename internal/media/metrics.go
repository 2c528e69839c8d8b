package media

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricMediaSignTotal counts resolutions by outcome.
const MetricMediaSignTotal = "media_sign_total"

// Resolution outcomes.
const (
	OutcomeSigned      = "signed"
	OutcomeFailed      = "failed"
	OutcomePassthrough = "passthrough"
	OutcomeUnsigned    = "unsigned"
)

// Metrics contains Prometheus metrics for media resolution.
type Metrics struct {
	signTotal *prometheus.CounterVec
}

// NewMetrics creates unregistered media metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		signTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricMediaSignTotal,
				Help: "Total number of media reference resolutions by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.signTotal)
}

// IncSign increments the resolution counter for an outcome.
func (m *Metrics) IncSign(outcome string) {
	m.signTotal.WithLabelValues(outcome).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.signTotal}
}
