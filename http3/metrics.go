package http3

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of counters/histograms a Client reports: plain
// prometheus.New*Vec constructors registered against an explicit
// *prometheus.Registry rather than promauto's global default registry.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	keyUpdatesTotal prometheus.Counter
}

// NewMetrics builds and registers a Metrics set against reg. Passing the
// same *prometheus.Registry to multiple Clients lets them share one
// /metrics endpoint.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qonn",
			Subsystem: "http3",
			Name:      "requests_total",
			Help:      "Total HTTP/3 requests, by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qonn",
			Subsystem: "http3",
			Name:      "request_duration_seconds",
			Help:      "Time from SendRequest to the response headers arriving.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		keyUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qonn",
			Subsystem: "http3",
			Name:      "key_updates_total",
			Help:      "Total 1-RTT key updates observed on connections from this client.",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.keyUpdatesTotal)
	return m
}

func (m *Metrics) observeRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) observeKeyUpdate() {
	if m == nil {
		return
	}
	m.keyUpdatesTotal.Inc()
}
