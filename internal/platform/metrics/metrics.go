package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP and validation metrics for the process.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	Validations     *prometheus.CounterVec
}

// New creates and registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_gdpr_validations_total",
			Help: "GDPR validations performed, by subject kind and result",
		}, []string{"kind", "result"}),
	}
}

// ObserveValidation counts one validation outcome.
func (m *Metrics) ObserveValidation(kind string, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.Validations.WithLabelValues(kind, result).Inc()
}
