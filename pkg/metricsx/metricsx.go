// Package metricsx holds the Prometheus collectors shared by the gatekeeper,
// the caches, and the IDM connector. Every method is safe on a nil *Metrics so
// library users can opt out by passing nothing.
package metricsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision results.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// Cache refresh modes.
const (
	ModeSync       = "sync"
	ModeBackground = "background"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	decisions      *prometheus.CounterVec
	cacheRefreshes *prometheus.CounterVec
	idmRequests    *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New builds a Metrics with its own registry, so tests can create as many as
// they like without tripping duplicate registration.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gatekeeper_decisions_total",
				Help:      "Enforcement decisions by result and request tag.",
			},
			[]string{"result", "tag"},
		),
		cacheRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_refresh_total",
				Help:      "Cache refreshes by cache name, mode and outcome.",
			},
			[]string{"cache", "mode", "outcome"},
		),
		idmRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idm_requests_total",
				Help:      "Calls to the identity provider by operation and HTTP status.",
			},
			[]string{"op", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Inbound HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisions,
		m.cacheRefreshes,
		m.idmRequests,
		m.httpDuration,
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDecision(result, tag string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(result, tag).Inc()
}

func (m *Metrics) ObserveCacheRefresh(cache, mode string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.cacheRefreshes.WithLabelValues(cache, mode, outcome).Inc()
}

// ObserveIDMRequest records an IDM call. A status of 0 means the request
// never got a response.
func (m *Metrics) ObserveIDMRequest(op string, status int) {
	if m == nil {
		return
	}
	m.idmRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

// HTTPMiddleware records request latency by method and status code.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		m.httpDuration.
			WithLabelValues(r.Method, strconv.Itoa(rw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter

	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
