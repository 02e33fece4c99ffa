// Package metrics holds the Prometheus collectors of the HTTP service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "image_compressor"

// Request outcomes used as the status label.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Metrics is a set of collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	bytesIn  prometheus.Counter
	bytesOut prometheus.Counter
	duration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Compression requests by produced format and outcome.",
		}, []string{"format", "status"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_in_total",
			Help:      "Bytes of uploaded images that compressed successfully.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_out_total",
			Help:      "Bytes of compressed images returned.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Time spent compressing one image.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"format"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.bytesIn,
		m.bytesOut,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSuccess records a compressed request.
func (m *Metrics) ObserveSuccess(format string, in, out int, elapsed time.Duration) {
	m.requests.WithLabelValues(format, StatusOK).Inc()
	m.bytesIn.Add(float64(in))
	m.bytesOut.Add(float64(out))
	m.duration.WithLabelValues(format).Observe(elapsed.Seconds())
}

// ObserveFailure records a request that failed during compression.
func (m *Metrics) ObserveFailure(format string, elapsed time.Duration) {
	m.requests.WithLabelValues(format, StatusError).Inc()
	m.duration.WithLabelValues(format).Observe(elapsed.Seconds())
}

// ObserveRejected records a request refused before compression started.
func (m *Metrics) ObserveRejected() {
	m.requests.WithLabelValues("unknown", StatusRejected).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
