package paypack

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK          = "ok"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
)

// Metrics records provider call counts and latency.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paypack_requests_total",
			Help: "Paypack API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paypack_request_duration_seconds",
			Help:    "Duration of Paypack API calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 9),
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) observe(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case IsRejected(err):
		outcome = outcomeRejected
	case err != nil:
		outcome = outcomeUnavailable
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
