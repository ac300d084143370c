package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPErrorsTotal        *prometheus.CounterVec
	AuthorizationDecisions *prometheus.CounterVec
	HistoryRecordsTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_errors_total",
				Help: "Total number of error responses by error code",
			},
			[]string{"code"},
		),
		AuthorizationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authorization_decisions_total",
				Help: "Authorization checks by entity, operation and result",
			},
			[]string{"entity", "operation", "result"},
		),
		HistoryRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "history_records_total",
				Help: "Ticket history rows written by action",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPErrorsTotal,
		m.AuthorizationDecisions,
		m.HistoryRecordsTotal,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest observes one completed HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts an error response by its stable code.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(code).Inc()
}

// RecordAuthorization counts one authorization decision.
func (m *Metrics) RecordAuthorization(entity, operation string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.AuthorizationDecisions.WithLabelValues(entity, operation, result).Inc()
}

// RecordHistory counts history rows written for an action.
func (m *Metrics) RecordHistory(action string, rows int) {
	if m == nil || rows == 0 {
		return
	}
	m.HistoryRecordsTotal.WithLabelValues(action).Add(float64(rows))
}
