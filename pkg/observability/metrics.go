package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	LoginAttemptsTotal      *prometheus.CounterVec
	VerificationCodesIssued prometheus.Counter
	VerificationsTotal      *prometheus.CounterVec
	TokensIssuedTotal       prometheus.Counter
	TokenValidationsTotal   *prometheus.CounterVec
	PermissionChecksTotal   *prometheus.CounterVec
	CodeDeliveriesTotal     *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "midden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midden_login_attempts_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"}, // code_sent, invalid_credentials, guest, error
		),
		VerificationCodesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "midden_verification_codes_issued_total",
				Help: "Total number of 2FA verification codes issued",
			},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midden_verifications_total",
				Help: "Total number of 2FA verification attempts by outcome",
			},
			[]string{"outcome"}, // accepted, rejected, error
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "midden_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midden_token_validations_total",
				Help: "Total number of bearer token validations by outcome",
			},
			[]string{"outcome"}, // valid, missing, invalid
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midden_permission_checks_total",
				Help: "Total number of permission gate checks by outcome",
			},
			[]string{"permission", "outcome"}, // allowed, denied, unauthenticated
		),
		CodeDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midden_code_deliveries_total",
				Help: "Total number of verification code delivery attempts by outcome",
			},
			[]string{"outcome"}, // sent, failed, skipped
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "midden_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "midden_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.VerificationCodesIssued,
		m.VerificationsTotal,
		m.TokensIssuedTotal,
		m.TokenValidationsTotal,
		m.PermissionChecksTotal,
		m.CodeDeliveriesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments HTTP handlers with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
