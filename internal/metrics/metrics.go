package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smsbatch"

// Batch provisioning outcomes
const (
	OutcomeProvisioned = "provisioned"
	OutcomeFailed      = "failed"
)

// Metrics holds the prometheus collectors exported on /metrics
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	batches          *prometheus.CounterVec
	subscribers      prometheus.Counter
}

// NewMetrics creates a registry with process and go runtime collectors
// plus the service collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests sent to the messaging API by method, path and status.",
		}, []string{"method", "path", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the messaging API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batches_total",
			Help:      "Subscriber batches processed by outcome.",
		}, []string{"outcome"}),
		subscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "subscribers_total",
			Help:      "Subscribers enrolled into remote groups.",
		}),
	}

	reg.MustRegister(m.upstreamRequests, m.upstreamLatency, m.batches, m.subscribers)
	return m
}

// ObserveUpstream records one upstream round trip. status is 0 when no
// response was received.
func (m *Metrics) ObserveUpstream(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(method, path, label).Inc()
	m.upstreamLatency.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveBatch records the outcome of provisioning one batch of size members
func (m *Metrics) ObserveBatch(outcome string, size int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
	if outcome == OutcomeProvisioned {
		m.subscribers.Add(float64(size))
	}
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
