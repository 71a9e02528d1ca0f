package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments storage operations. One Metrics value is shared by
// every engine bound to the same backend; the per-operation label keeps
// cardinality fixed regardless of object count.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the storage collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warren",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by type and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warren",
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Storage operation latency by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

func (m *Metrics) observe(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}
