package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds all Prometheus metrics for the application.
// It provides centralized metric registration and collection.
type MetricsCollector struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec

	// Rate limiting metrics
	rateLimitExceededTotal *prometheus.CounterVec

	// Database metrics
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge
	dbConnectionsMax    prometheus.Gauge

	// Redis metrics
	redisConnectionsActive prometheus.Gauge
}

// NewMetricsCollector creates and registers all application metrics with Prometheus.
// Uses promauto to automatically register metrics with the default registry.
//
// Metrics are organized by subsystem:
//   - http: HTTP server metrics (requests, latency, in-flight)
//   - ratelimit: requests rejected by rate limiting middleware
//   - database: PostgreSQL connection pool metrics
//   - redis: Redis connection pool metrics
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		// HTTP Metrics
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authcore",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests, labeled by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "authcore",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				// Buckets: 1ms, 5ms, 10ms, 50ms, 100ms, 500ms, 1s, 5s, 10s
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"method", "path", "status"},
		),

		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "authcore",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being served",
			},
		),

		httpRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "authcore",
				Subsystem: "http",
				Name:      "request_size_bytes",
				Help:      "HTTP request size in bytes",
				// Buckets: 1KB, 10KB, 100KB, 1MB, 10MB, 100MB
				Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
			},
			[]string{"method", "path"},
		),

		httpResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "authcore",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "HTTP response size in bytes",
				// Buckets: 1KB, 10KB, 100KB, 1MB, 10MB, 100MB
				Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
			},
			[]string{"method", "path", "status"},
		),

		// Rate Limiting Metrics
		rateLimitExceededTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authcore",
				Subsystem: "ratelimit",
				Name:      "exceeded_total",
				Help:      "Total number of requests rejected for exceeding a rate limit, labeled by limiter",
			},
			[]string{"limiter"},
		),

		// Database Metrics
		dbConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "authcore",
				Subsystem: "database",
				Name:      "connections_active",
				Help:      "Number of active database connections currently in use",
			},
		),

		dbConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "authcore",
				Subsystem: "database",
				Name:      "connections_idle",
				Help:      "Number of idle database connections in the pool",
			},
		),

		dbConnectionsMax: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "authcore",
				Subsystem: "database",
				Name:      "connections_max",
				Help:      "Maximum number of open database connections allowed",
			},
		),

		// Redis Metrics
		redisConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "authcore",
				Subsystem: "redis",
				Name:      "connections_active",
				Help:      "Number of active Redis connections from the pool",
			},
		),

	}
}

// MetricsMiddleware wraps HTTP handlers to automatically collect request metrics.
// It records:
//   - Request count (by method, path, status)
//   - Request duration (histogram)
//   - In-flight requests (gauge)
//   - Request and response sizes
//
// This middleware should be placed early in the middleware chain (after RequestID
// but before authentication) to capture all requests including auth failures.
//
// Usage:
//
//	collector := middleware.NewMetricsCollector()
//	r.Use(middleware.MetricsMiddleware(collector))
func MetricsMiddleware(collector *MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Increment in-flight requests
			collector.httpRequestsInFlight.Inc()
			defer collector.httpRequestsInFlight.Dec()

			// Record request size
			if r.ContentLength > 0 {
				collector.httpRequestSize.WithLabelValues(
					r.Method,
					normalizePathForMetrics(r.URL.Path),
				).Observe(float64(r.ContentLength))
			}

			// Wrap response writer to capture status and size
			wrapped := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default status
			}

			// Record start time for duration calculation
			start := time.Now()

			// Process request
			next.ServeHTTP(wrapped, r)

			// Calculate duration
			duration := time.Since(start).Seconds()

			// Normalize path for metrics (remove dynamic path parameters)
			path := normalizePathForMetrics(r.URL.Path)
			method := r.Method
			status := strconv.Itoa(wrapped.statusCode)

			// Record metrics
			collector.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			collector.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
			collector.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(wrapped.bytesWritten))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and bytes written.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (mrw *metricsResponseWriter) WriteHeader(statusCode int) {
	if !mrw.wroteHeader {
		mrw.statusCode = statusCode
		mrw.wroteHeader = true
		mrw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !mrw.wroteHeader {
		mrw.WriteHeader(http.StatusOK)
	}
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += int64(n)
	return n, err
}

// normalizePathForMetrics returns the label used for a request path in
// Prometheus metrics. Every path, static or not, is returned unchanged:
// UUIDs and numeric IDs in a path are not replaced with a placeholder, so
// each distinct path becomes its own label value.
//
// Examples:
//   /health → /health
//   /api/v1/token → /api/v1/token
func normalizePathForMetrics(path string) string {
	// Common static paths that should not be normalized
	switch path {
	case "/health", "/health/ready", "/metrics":
		return path
	}

	// For now, return the full path
	// TODO: Implement intelligent path parameter detection
	// Options:
	//   1. Use chi's route patterns if available from context
	//   2. Regex-based UUID/number detection
	//   3. Path template matching
	//
	// For MVP, we return the full path. In production, this should be
	// normalized to prevent cardinality explosion.
	return path
}

// RecordRateLimitExceeded records a request rejected by a rate limiter.
//
// Parameters:
//   - limiter: which limiter rejected the request ("global", "auth", "login")
func (mc *MetricsCollector) RecordRateLimitExceeded(limiter string) {
	mc.rateLimitExceededTotal.WithLabelValues(limiter).Inc()
}

// UpdateDatabaseStats updates database connection pool metrics.
// Call this periodically (e.g., every 30 seconds) from a background goroutine.
//
// Parameters:
//   - active: Number of connections currently in use
//   - idle: Number of idle connections in the pool
//   - max: Maximum allowed connections (configured)
func (mc *MetricsCollector) UpdateDatabaseStats(active, idle, max int) {
	mc.dbConnectionsActive.Set(float64(active))
	mc.dbConnectionsIdle.Set(float64(idle))
	mc.dbConnectionsMax.Set(float64(max))
}

// UpdateRedisStats updates Redis connection pool metrics.
// Call this periodically (e.g., every 30 seconds) from a background goroutine.
//
// Parameters:
//   - active: Number of active connections from the pool
func (mc *MetricsCollector) UpdateRedisStats(active int) {
	mc.redisConnectionsActive.Set(float64(active))
}
