// Package metrics exports prometheus instrumentation for the engine and
// the HTTP transport: operation counters and latencies, per-store key and
// byte gauges, and HTTP request histograms.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tensorkv/tensorkv/internal/engine"
	"github.com/tensorkv/tensorkv/internal/store"
)

// Metrics owns a private prometheus registry and every collector the
// service exports. It implements engine.Observer, so handing it to
// engine.WithObserver wires up the operation metrics.
type Metrics struct {
	reg *prometheus.Registry

	ops          *prometheus.CounterVec
	opLatency    *prometheus.HistogramVec
	storeKeys    *prometheus.GaugeVec
	storeBytes   *prometheus.GaugeVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Metrics with all collectors registered, plus the standard
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tensorkv_engine_ops_total",
			Help: "Engine operations by operation and outcome kind.",
		}, []string{"op", "outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tensorkv_engine_op_duration_seconds",
			Help:    "Engine operation latency.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op"}),
		storeKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tensorkv_store_keys",
			Help: "Number of keys currently stored, per store.",
		}, []string{"store"}),
		storeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tensorkv_store_payload_bytes",
			Help: "Total payload bytes currently stored, per store.",
		}, []string{"store"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tensorkv_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.reg.MustRegister(
		m.ops, m.opLatency, m.storeKeys, m.storeBytes, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe implements engine.Observer.
func (m *Metrics) Observe(op string, kind engine.Kind, elapsed time.Duration) {
	m.ops.WithLabelValues(op, string(kind)).Inc()
	m.opLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// SetStoreGauges updates the per-store gauges from a registry snapshot.
// Stores live for the process lifetime, so gauges are only ever set, never
// removed.
func (m *Metrics) SetStoreGauges(infos []store.Info) {
	for _, info := range infos {
		m.storeKeys.WithLabelValues(info.Name).Set(float64(info.Keys))
		m.storeBytes.WithLabelValues(info.Name).Set(float64(info.Bytes))
	}
}

// Handler returns the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying prometheus registry, for tests and for
// embedding the collectors elsewhere.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
