package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit stream.
type Metrics struct {
	Enqueued            prometheus.Counter
	Dropped             prometheus.Counter
	Published           prometheus.Counter
	PublishFailures     prometheus.Counter
	CircuitBreakerState prometheus.Gauge
	BufferDepth         prometheus.Gauge
}

// NewMetrics registers the stream metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "compliance_audit_stream_enqueued_total",
			Help: "Total number of audit entries queued for streaming",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "compliance_audit_stream_dropped_total",
			Help: "Total number of audit entries evicted from a full stream buffer",
		}),
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "compliance_audit_stream_published_total",
			Help: "Total number of audit entries published to the stream",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "compliance_audit_stream_publish_failures_total",
			Help: "Total number of audit entries that could not be published after retries",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_audit_stream_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		BufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_audit_stream_buffer_depth",
			Help: "Number of audit entries waiting to be streamed",
		}),
	}
}

func (m *Metrics) setCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
