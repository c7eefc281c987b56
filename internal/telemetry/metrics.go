// Package telemetry provides logging and metrics for the voice bridge.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicebridge"

// Metrics holds the Prometheus collectors of the bridge.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal      *prometheus.CounterVec
	engineDuration  prometheus.Histogram
	engineErrors    prometheus.Counter
	callEventsTotal *prometheus.CounterVec
	registryErrors  *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns handled, by rendered outcome.",
		}, []string{"outcome"}),
		engineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_request_duration_seconds",
			Help:      "Latency of dialogue engine requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		engineErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Failed dialogue engine requests.",
		}),
		callEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call status events received, by status.",
		}, []string{"status"}),
		registryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_registry_errors_total",
			Help:      "Session registry failures, by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		m.turnsTotal,
		m.engineDuration,
		m.engineErrors,
		m.callEventsTotal,
		m.registryErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordTurn counts a rendered turn.
func (m *Metrics) RecordTurn(outcome string) {
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveEngineCall records the latency of an engine request and counts it as
// failed when err is non-nil.
func (m *Metrics) ObserveEngineCall(d time.Duration, err error) {
	m.engineDuration.Observe(d.Seconds())
	if err != nil {
		m.engineErrors.Inc()
	}
}

// RecordCallEvent counts a call status callback.
func (m *Metrics) RecordCallEvent(status string) {
	if status == "" {
		status = "unknown"
	}
	m.callEventsTotal.WithLabelValues(status).Inc()
}

// RecordRegistryError counts a failed registry operation (get, set, delete).
func (m *Metrics) RecordRegistryError(op string) {
	m.registryErrors.WithLabelValues(op).Inc()
}

// Handler returns an HTTP handler that serves the metrics in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
