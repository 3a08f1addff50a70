package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's collectors. Methods are safe on a nil receiver
// so components can run without metrics wired.
type Metrics struct {
	registry *prometheus.Registry

	auditEntries    *prometheus.CounterVec
	apiCallFailures prometheus.Counter
	accessDenied    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		auditEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_entries_written_total",
				Help: "Audit entries persisted, by operation.",
			},
			[]string{"operation"},
		),
		apiCallFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "api_call_log_failures_total",
				Help: "API call summaries that could not be recorded.",
			},
		),
		accessDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_denied_total",
				Help: "Requests rejected by route guards, by requirement kind.",
			},
			[]string{"kind"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		m.auditEntries,
		m.apiCallFailures,
		m.accessDenied,
		m.httpLatency,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) AuditEntryWritten(operation string) {
	if m == nil {
		return
	}
	m.auditEntries.WithLabelValues(operation).Inc()
}

func (m *Metrics) APICallLogFailed() {
	if m == nil {
		return
	}
	m.apiCallFailures.Inc()
}

func (m *Metrics) AccessDenied(kind string) {
	if m == nil {
		return
	}
	m.accessDenied.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(method, route, status).Observe(seconds)
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
