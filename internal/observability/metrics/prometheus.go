// Package metrics provides Prometheus metrics for the conversation engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drfirst/medguide/pkg/circuitbreaker"
)

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	BackendRequests     *prometheus.CounterVec
	BackendDuration     *prometheus.HistogramVec
	FallbackAnswers     prometheus.Counter
	Modifications       *prometheus.CounterVec
	SessionsActive      prometheus.Gauge
	SessionsCreated     prometheus.Counter
	PromptRerolls       prometheus.Counter
	AuditEvents         *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all metrics on a private registry that also carries the Go
// and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medguide_backend_requests_total",
			Help: "Medical backend calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medguide_backend_request_duration_seconds",
			Help:    "Medical backend call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		FallbackAnswers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medguide_fallback_answers_total",
			Help: "Answers served locally because the backend failed",
		}),
		Modifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medguide_modifications_total",
			Help: "Response modifications by kind and result",
		}, []string{"kind", "result"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "medguide_sessions_active",
			Help: "Sessions currently held in memory",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medguide_sessions_created_total",
			Help: "Sessions created",
		}),
		PromptRerolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medguide_prompt_rerolls_total",
			Help: "Prompt set rerolls",
		}),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medguide_audit_events_total",
			Help: "Audit events by type and delivery result",
		}, []string{"event_type", "result"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medguide_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BackendRequests,
		m.BackendDuration,
		m.FallbackAnswers,
		m.Modifications,
		m.SessionsActive,
		m.SessionsCreated,
		m.PromptRerolls,
		m.AuditEvents,
		m.CircuitBreakerState,
	)

	return m
}

// Registry exposes the registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBackendCall records one medical backend call
func (m *Metrics) ObserveBackendCall(endpoint, outcome string, elapsed time.Duration) {
	m.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	m.BackendDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// FallbackServed counts a locally built answer
func (m *Metrics) FallbackServed(error) {
	m.FallbackAnswers.Inc()
}

// ModificationDone records the result of a modify request
func (m *Metrics) ModificationDone(kind string, err error) {
	m.Modifications.WithLabelValues(kind, result(err)).Inc()
}

// SessionOpened tracks a new session
func (m *Metrics) SessionOpened() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed tracks an evicted or deleted session
func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
}

// Rerolled counts a prompt set reroll
func (m *Metrics) Rerolled() {
	m.PromptRerolls.Inc()
}

// AuditPublished records an audit delivery outcome
func (m *Metrics) AuditPublished(eventType string, err error) {
	m.AuditEvents.WithLabelValues(eventType, result(err)).Inc()
}

// BreakerStateChanged mirrors breaker transitions into a gauge
func (m *Metrics) BreakerStateChanged(name string, _, to circuitbreaker.State) {
	var v float64
	switch to {
	case circuitbreaker.StateOpen:
		v = 1
	case circuitbreaker.StateHalfOpen:
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
