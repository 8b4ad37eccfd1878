package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	t.Parallel()

	cfg := RateLimiterConfig{
		RedisClient: newRateLimitTestRedis(t),
		GlobalLimit: 3,
		WindowSize:  time.Minute,
		Logger:      zerolog.Nop(),
	}

	handler := RateLimiter(cfg)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "203.0.113.1:4000"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	t.Parallel()

	cfg := RateLimiterConfig{
		RedisClient: newRateLimitTestRedis(t),
		GlobalLimit: 2,
		WindowSize:  time.Minute,
		Logger:      zerolog.Nop(),
	}

	handler := RateLimiter(cfg)(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "203.0.113.2:4000"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		last = rec
	}

	require.NotNil(t, last)
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestRateLimiter_SeparatesByClientIP(t *testing.T) {
	t.Parallel()

	cfg := RateLimiterConfig{
		RedisClient: newRateLimitTestRedis(t),
		GlobalLimit: 1,
		WindowSize:  time.Minute,
		Logger:      zerolog.Nop(),
	}

	handler := RateLimiter(cfg)(okHandler())

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req1.RemoteAddr = "203.0.113.3:4000"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	assert.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.RemoteAddr = "203.0.113.4:4000"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code, "a distinct IP must not share the first IP's budget")
}

func TestLoginRateLimiter_UsesSeparateBudgetFromGlobal(t *testing.T) {
	t.Parallel()

	redisClient := newRateLimitTestRedis(t)
	cfg := RateLimiterConfig{
		RedisClient: redisClient,
		GlobalLimit: 1,
		LoginLimit:  5,
		WindowSize:  time.Minute,
		Logger:      zerolog.Nop(),
	}

	globalHandler := RateLimiter(cfg)(okHandler())
	loginHandler := LoginRateLimiter(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	req.RemoteAddr = "203.0.113.5:4000"

	rec := httptest.NewRecorder()
	globalHandler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	globalHandler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code, "global budget of 1 must already be exhausted")

	rec = httptest.NewRecorder()
	loginHandler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "login limiter tracks its own key, independent of the global limiter")
}

func TestAuthRateLimiter_RequiresUserContext(t *testing.T) {
	t.Parallel()

	cfg := RateLimiterConfig{
		RedisClient: newRateLimitTestRedis(t),
		AuthLimit:   10,
		WindowSize:  time.Minute,
		Logger:      zerolog.Nop(),
	}

	handler := AuthRateLimiter(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "must fail closed when no authenticated user is in context")
}

func TestExtractClientIP_StripsPort(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:9999"

	assert.Equal(t, "198.51.100.7", extractClientIP(req, false))
}

func TestExtractClientIP_IPv6WithBrackets(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:9999"

	assert.Equal(t, "::1", extractClientIP(req, false))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
