// Package metrics owns the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultPrefix = "igreja"

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthOutcomes        *prometheus.CounterVec
	TenantScopeMissing  prometheus.Counter
	SagaOutcomes        *prometheus.CounterVec
}

// New registers every collector under prefix (DefaultPrefix when empty),
// together with the Go runtime and process collectors.
func New(prefix string) *Metrics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "_")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AuthOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_auth_outcomes_total",
				Help: "Authentication attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		TenantScopeMissing: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_tenant_scope_missing_total",
				Help: "Authenticated requests whose caller has no resolvable profile",
			},
		),
		SagaOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_saga_outcomes_total",
				Help: "Multi-step operations by name and outcome",
			},
			[]string{"saga", "outcome"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// ObserveAuth counts an auth attempt. A nil receiver is a no-op so callers can
// run without metrics.
func (m *Metrics) ObserveAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthOutcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveSaga counts a finished saga. Nil-safe.
func (m *Metrics) ObserveSaga(name, outcome string) {
	if m == nil {
		return
	}
	m.SagaOutcomes.WithLabelValues(name, outcome).Inc()
}
