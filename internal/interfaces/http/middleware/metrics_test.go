package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsCollector(t *testing.T) {
	collector := NewMetricsCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.httpRequestsInFlight)
	assert.NotNil(t, collector.httpRequestSize)
	assert.NotNil(t, collector.httpResponseSize)
	assert.NotNil(t, collector.rateLimitExceededTotal)
	assert.NotNil(t, collector.dbConnectionsActive)
	assert.NotNil(t, collector.dbConnectionsIdle)
	assert.NotNil(t, collector.dbConnectionsMax)
	assert.NotNil(t, collector.redisConnectionsActive)
}

func newTestCollector(suffix string) *MetricsCollector {
	return &MetricsCollector{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_http_requests_total_" + suffix},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "test_http_request_duration_seconds_" + suffix,
				Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "test_http_requests_in_flight_" + suffix},
		),
		httpRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "test_http_request_size_bytes_" + suffix,
				Buckets: []float64{1024, 10240, 102400},
			},
			[]string{"method", "path"},
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "test_http_response_size_bytes_" + suffix,
				Buckets: []float64{1024, 10240, 102400},
			},
			[]string{"method", "path", "status"},
		),
	}
}

func TestMetricsMiddleware_RecordsRequest(t *testing.T) {
	collector := newTestCollector("a")
	middleware := MetricsMiddleware(collector)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wrappedHandler := middleware(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	count := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "200"))
	assert.InDelta(t, float64(1), count, 0.001, "should record one request")
}

func TestMetricsMiddleware_InFlightRequests(t *testing.T) {
	collector := newTestCollector("b")
	middleware := MetricsMiddleware(collector)

	started := make(chan bool)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- true
		<-started
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := middleware(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	go func() {
		wrappedHandler.ServeHTTP(rec, req)
	}()

	<-started

	inFlight := testutil.ToFloat64(collector.httpRequestsInFlight)
	assert.InDelta(t, float64(1), inFlight, 0.001, "should have 1 request in flight")

	started <- true
}

func TestMetricsMiddleware_DifferentStatusCodes(t *testing.T) {
	testCases := []struct {
		name           string
		statusCode     int
		expectedStatus string
	}{
		{"Success 200", http.StatusOK, "200"},
		{"Created 201", http.StatusCreated, "201"},
		{"Bad Request 400", http.StatusBadRequest, "400"},
		{"Unauthorized 401", http.StatusUnauthorized, "401"},
		{"Too Many Requests 429", http.StatusTooManyRequests, "429"},
		{"Internal Server Error 500", http.StatusInternalServerError, "500"},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			collector := newTestCollector(strconvSuffix(i))
			middleware := MetricsMiddleware(collector)

			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			})

			wrappedHandler := middleware(testHandler)

			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			rec := httptest.NewRecorder()

			wrappedHandler.ServeHTTP(rec, req)

			assert.Equal(t, tc.statusCode, rec.Code)

			count := testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/test", tc.expectedStatus))
			assert.InDelta(t, float64(1), count, 0.001, "should record request with status %s", tc.expectedStatus)
		})
	}
}

func TestMetricsCollector_RecordRateLimitExceeded(t *testing.T) {
	collector := &MetricsCollector{
		rateLimitExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_ratelimit_exceeded_total"},
			[]string{"limiter"},
		),
	}

	collector.RecordRateLimitExceeded("global")
	collector.RecordRateLimitExceeded("global")
	collector.RecordRateLimitExceeded("login")

	globalCount := testutil.ToFloat64(collector.rateLimitExceededTotal.WithLabelValues("global"))
	assert.Equal(t, float64(2), globalCount)

	loginCount := testutil.ToFloat64(collector.rateLimitExceededTotal.WithLabelValues("login"))
	assert.Equal(t, float64(1), loginCount)
}

func TestMetricsCollector_UpdateDatabaseStats(t *testing.T) {
	collector := &MetricsCollector{
		dbConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_connections_active"}),
		dbConnectionsIdle:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_connections_idle"}),
		dbConnectionsMax:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_connections_max"}),
	}

	collector.UpdateDatabaseStats(10, 5, 25)

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.dbConnectionsActive))
	assert.Equal(t, float64(5), testutil.ToFloat64(collector.dbConnectionsIdle))
	assert.Equal(t, float64(25), testutil.ToFloat64(collector.dbConnectionsMax))
}

func TestMetricsCollector_UpdateRedisStats(t *testing.T) {
	collector := &MetricsCollector{
		redisConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_redis_connections_active"}),
	}

	collector.UpdateRedisStats(8)

	assert.Equal(t, float64(8), testutil.ToFloat64(collector.redisConnectionsActive))
}

func TestNormalizePathForMetrics(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Health endpoint", "/health", "/health"},
		{"Readiness endpoint", "/health/ready", "/health/ready"},
		{"Metrics endpoint", "/metrics", "/metrics"},
		{"Token endpoint", "/api/v1/token", "/api/v1/token"},
		{"Whoami endpoint", "/api/v1/whoami", "/api/v1/whoami"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := normalizePathForMetrics(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func strconvSuffix(i int) string {
	suffixes := []string{"c0", "c1", "c2", "c3", "c4", "c5"}
	if i < len(suffixes) {
		return suffixes[i]
	}
	return "cx"
}
