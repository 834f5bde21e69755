// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fingerprint-bridge/internal/model"
)

const namespace = "fingerprint_bridge"

// Metrics holds the bridge's prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connectionState prometheus.Gauge
	handshakes      *prometheus.CounterVec
	reconnects      prometheus.Counter
	linesReceived   prometheus.Counter
	commands        *prometheus.CounterVec
	subscribers     prometheus.Gauge
	httpDuration    *prometheus.HistogramVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current supervisor state (0=disconnected, 1=scanning, 2=verifying, 3=connected, 4=faulted).",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Handshake attempts by result.",
		}, []string{"result"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connections lost after being established.",
		}),
		linesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_received_total",
			Help:      "Lines received from the device.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands dispatched to the device by result.",
		}, []string{"result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_subscribers",
			Help:      "Active log line subscribers.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(
		m.connectionState,
		m.handshakes,
		m.reconnects,
		m.linesReceived,
		m.commands,
		m.subscribers,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetState records the supervisor state
func (m *Metrics) SetState(state model.ConnectionState) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// Handshake records one handshake outcome
func (m *Metrics) Handshake(success bool) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result(success)).Inc()
}

// Reconnect records a lost connection
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// LineReceived records an inbound line
func (m *Metrics) LineReceived() {
	if m == nil {
		return
	}
	m.linesReceived.Inc()
}

// Command records a command dispatch outcome
func (m *Metrics) Command(success bool) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(result(success)).Inc()
}

// SubscriberDelta adjusts the subscriber gauge
func (m *Metrics) SubscriberDelta(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
