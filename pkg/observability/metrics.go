package observability

import (
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

	// Auth metrics
	RegistrationsTotal *prometheus.CounterVec
	LoginsTotal        *prometheus.CounterVec
	TokenRejections    *prometheus.CounterVec
	RateLimitedTotal   *prometheus.CounterVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Upstream and cache metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec

	// Business metrics
	UsersTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "route"},
		),

		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_registrations_total",
				Help: "Registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokenRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_token_rejections_total",
				Help: "Requests refused by the bearer token gate",
			},
			[]string{"reason"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_rate_limited_total",
				Help: "Requests rejected by rate limiting",
			},
			[]string{"limiter"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_storage_operations_total",
				Help: "Total number of user store operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_storage_operation_duration_seconds",
				Help:    "User store operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation", "backend"},
		),

		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_upstream_requests_total",
				Help: "Requests sent to NASA APIs",
			},
			[]string{"endpoint", "status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_upstream_request_duration_seconds",
				Help:    "NASA API request duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"tier"},
		),

		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "explorer_users_total",
				Help: "Number of registered users",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.RegistrationsTotal,
		m.LoginsTotal,
		m.TokenRejections,
		m.RateLimitedTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.UsersTotal,
	)

	return m
}

// ObserveStorage records the outcome and latency of one store operation
func (m *Metrics) ObserveStorage(operation, backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

// ObserveUpstream records one NASA API round trip
func (m *Metrics) ObserveUpstream(endpoint string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// CacheHit records a cache hit in the given tier
func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(tier).Inc()
}

// CacheMiss records a cache miss in the given tier
func (m *Metrics) CacheMiss(tier string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(tier).Inc()
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by their mux route template so that path
// parameters and query strings do not explode label cardinality.
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
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
