// Package metrics exposes Prometheus collectors for the replica, the
// command side and the HTTP layer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spesedonut"

type Metrics struct {
	registry *prometheus.Registry

	batchesApplied prometheus.Counter
	deltasApplied  *prometheus.CounterVec
	deltasIgnored  *prometheus.CounterVec
	replicaSize    prometheus.Gauge
	frameVersion   prometheus.Gauge

	commands     *prometheus.CounterVec
	publishFails prometheus.Counter

	sseClients   prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		batchesApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replica_batches_applied_total",
			Help:      "Change batches applied to the local replica",
		}),
		deltasApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replica_deltas_applied_total",
			Help:      "Deltas applied to the local replica by change kind",
		}, []string{"kind"}),
		deltasIgnored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replica_deltas_ignored_total",
			Help:      "Deltas skipped by the local replica by reason",
		}, []string{"reason"}),
		replicaSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replica_records",
			Help:      "Records currently held by the local replica",
		}),
		frameVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chart_frame_version",
			Help:      "Version of the latest projected chart frame",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expense_commands_total",
			Help:      "Create, update and delete commands by result",
		}, []string{"op", "result"}),
		publishFails: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_feed_publish_failures_total",
			Help:      "Change batches that could not be published",
		}),
		sseClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_clients",
			Help:      "Connected event stream clients",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) BatchApplied(replicaSize int) {
	if m == nil {
		return
	}
	m.batchesApplied.Inc()
	m.replicaSize.Set(float64(replicaSize))
}

func (m *Metrics) DeltaApplied(kind string) {
	if m == nil {
		return
	}
	m.deltasApplied.WithLabelValues(kind).Inc()
}

func (m *Metrics) DeltaIgnored(reason string) {
	if m == nil {
		return
	}
	m.deltasIgnored.WithLabelValues(reason).Inc()
}

func (m *Metrics) FrameProjected(version uint64) {
	if m == nil {
		return
	}
	m.frameVersion.Set(float64(version))
}

// Command records the outcome of a create/update/delete.
func (m *Metrics) Command(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(op, result).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFails.Inc()
}

func (m *Metrics) SSEClients(n int) {
	if m == nil {
		return
	}
	m.sseClients.Set(float64(n))
}

func (m *Metrics) HTTPRequest(method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}
