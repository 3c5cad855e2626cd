package compliance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "compliance/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for synchronous audit writes.
type Metrics struct {
	Written       *prometheus.CounterVec
	WriteFailures *prometheus.CounterVec
	WriteDuration prometheus.Histogram
}

// NewMetrics registers the write metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Written: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_audit_entries_written_total",
			Help: "Total number of audit entries persisted",
		}, []string{"action"}),
		WriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_audit_write_failures_total",
			Help: "Total number of audit entries that could not be persisted",
		}, []string{"action"}),
		WriteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_audit_write_duration_seconds",
			Help:    "Latency of synchronous audit writes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeWrite(action audit.Action, d time.Duration) {
	m.Written.WithLabelValues(string(action)).Inc()
	m.WriteDuration.Observe(d.Seconds())
}

func (m *Metrics) incWriteFailure(action audit.Action) {
	m.WriteFailures.WithLabelValues(string(action)).Inc()
}
