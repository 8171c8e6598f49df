package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal     *prometheus.CounterVec
	SessionResolutionsTotal *prometheus.CounterVec
	HookInvocationsTotal    *prometheus.CounterVec

	// Status metrics
	StatusOperationsTotal     *prometheus.CounterVec
	StatusOperationDuration   *prometheus.HistogramVec
	StatusInvariantViolations prometheus.Gauge

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbell_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barbell_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barbell_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbell_authz_decisions_total",
				Help: "Total number of permission checks by resource, outcome and reason",
			},
			[]string{"resource", "outcome", "reason"},
		),
		SessionResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbell_session_resolutions_total",
				Help: "Total number of session resolutions by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		HookInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbell_hook_invocations_total",
				Help: "Total number of hook invocations",
			},
			[]string{"path", "phase", "outcome"},
		),

		StatusOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barbell_status_operations_total",
				Help: "Total number of competitor status operations",
			},
			[]string{"operation", "outcome"},
		),
		StatusOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barbell_status_operation_duration_seconds",
				Help:    "Competitor status unit of work duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		StatusInvariantViolations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "barbell_status_invariant_violations",
				Help: "Number of athletes with more than one current status at the last check",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "barbell_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "barbell_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "barbell_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthzDecisionsTotal,
		m.SessionResolutionsTotal,
		m.HookInvocationsTotal,
		m.StatusOperationsTotal,
		m.StatusOperationDuration,
		m.StatusInvariantViolations,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// RecordAuthzDecision counts a permission check. Safe on a nil receiver.
func (m *Metrics) RecordAuthzDecision(resource, outcome, reason string) {
	if m == nil {
		return
	}
	m.AuthzDecisionsTotal.WithLabelValues(resource, outcome, reason).Inc()
}

// RecordSessionResolution counts a session lookup. Safe on a nil receiver.
func (m *Metrics) RecordSessionResolution(provider, outcome string) {
	if m == nil {
		return
	}
	m.SessionResolutionsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordHookInvocation counts a hook run. Safe on a nil receiver.
func (m *Metrics) RecordHookInvocation(path, phase, outcome string) {
	if m == nil {
		return
	}
	m.HookInvocationsTotal.WithLabelValues(path, phase, outcome).Inc()
}

// RecordStatusOperation counts a status unit of work and its duration. Safe on a nil receiver.
func (m *Metrics) RecordStatusOperation(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.StatusOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.StatusOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// SetStatusInvariantViolations publishes the result of the last invariant check. Safe on a nil receiver.
func (m *Metrics) SetStatusInvariantViolations(n int) {
	if m == nil {
		return
	}
	m.StatusInvariantViolations.Set(float64(n))
}

// RecordDBStats copies connection pool statistics into the gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux path template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Install it with (*mux.Router).Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
