package program

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks processed operations. A nil *Metrics records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Rejections *prometheus.CounterVec
}

// NewMetrics registers the registry metrics with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_operations_total",
			Help: "Registry operations processed, by operation and result",
		}, []string{"op", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attest_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}, []string{"op"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_rejections_total",
			Help: "Rejected registry operations, by error kind",
		}, []string{"kind"}),
	}
}

// Observe records one operation. Call with time.Now() taken at the start.
func (m *Metrics) Observe(op Op, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(op.String()).Observe(time.Since(start).Seconds())
	if err == nil {
		m.Operations.WithLabelValues(op.String(), "ok").Inc()
		return
	}
	m.Operations.WithLabelValues(op.String(), "rejected").Inc()
	kind := KindOf(err)
	if kind == "" {
		kind = KindInternal
	}
	m.Rejections.WithLabelValues(string(kind)).Inc()
}
