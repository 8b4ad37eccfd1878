package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dpopcore/authcore/internal/interfaces/http/middleware"
)

// MiddlewareConfig holds configuration for HTTP middleware.
type MiddlewareConfig struct {
	// DpopAuth authenticates bearer access tokens and, when bound, their
	// DPoP proofs. Shared across every protected route group.
	DpopAuth middleware.DpopAuthConfig

	// RateLimit backs the global, token-issuance, and per-subject rate
	// limiters below. Its RedisClient must be non-nil.
	RateLimit middleware.RateLimiterConfig

	// Logger for structured logging
	Logger zerolog.Logger
}

// NewRouter creates a new chi router with all routes and middleware configured.
// This is the main entry point for HTTP routing.
//
// Middleware order (CRITICAL for security):
//  1. RequestID - generates correlation ID
//  2. Metrics - Prometheus metrics collection
//  3. Logger - structured request/response logging
//  4. Recovery - panic recovery
//  5. SecurityHeaders - defense headers (CSP, X-Frame-Options, etc.)
//  6. CORS - cross-origin resource sharing
//  7. RateLimiter - global per-IP throttling
//
// Route groups:
//   - Health/Metrics routes: /health, /health/ready, /metrics (no authentication)
//   - Token routes: /api/v1/token (no authentication - this IS the auth issuer;
//     carries an additional per-IP LoginRateLimiter)
//   - Authenticated routes: behind RequireAccessAndDpop, carrying an
//     additional per-subject AuthRateLimiter
func NewRouter(
	tokenHandler *TokenHandler,
	healthHandler *HealthHandler,
	metricsCollector *middleware.MetricsCollector,
	middlewareConfig MiddlewareConfig,
	isProd bool,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware (applies to all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.MetricsMiddleware(metricsCollector))
	r.Use(middleware.Logger(middlewareConfig.Logger))
	r.Use(middleware.Recovery(middlewareConfig.Logger))

	// Security headers with production config
	securityCfg := middleware.DefaultSecurityHeadersConfig(isProd)
	r.Use(middleware.SecurityHeaders(securityCfg))

	// CORS with appropriate config
	var corsCfg middleware.CORSConfig
	if isProd {
		corsCfg = middleware.DefaultCORSConfig()
	} else {
		corsCfg = middleware.DevelopmentCORSConfig()
	}
	r.Use(middleware.CORS(corsCfg))

	// Timeout middleware (prevent long-running requests)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Global per-IP rate limit, ahead of routing so even unauthenticated
	// noise against unknown paths gets throttled.
	r.Use(middleware.RateLimiter(middlewareConfig.RateLimit))

	// Health check endpoints (no authentication required)
	r.Get("/health", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Prometheus metrics endpoint (no authentication required)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Token endpoint issues and refreshes tokens; it is the entry point
		// into the system, so it runs ahead of any bearer/DPoP requirement.
		// It gets the stricter login-style limit on top of the global one,
		// since credential and refresh-token exchange is exactly what
		// brute-force attempts target.
		r.With(middleware.LoginRateLimiter(middlewareConfig.RateLimit)).Mount("/", tokenHandler.Routes())

		// Any future resource routes bound to an issued access token sit
		// behind RequireAccessAndDpop, which forces proof verification
		// whenever the presented token carries cnf.jkt regardless of the
		// server-wide policy default.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAccessAndDpop(middlewareConfig.DpopAuth))
			r.Use(middleware.AuthRateLimiter(middlewareConfig.RateLimit))

			r.Get("/whoami", whoamiHandler)
		})
	})

	return r
}

// whoamiHandler returns the authenticated subject, letting a resource
// owner confirm token verification and sender constraint succeeded
// without depending on a domain-specific resource.
func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetAuthenticatedUserID(r.Context())
	if err != nil {
		middleware.WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "No authenticated subject in context")
		return
	}

	EncodeJSON(w, http.StatusOK, map[string]string{ //nolint:errcheck // best effort
		"user_id": userID.String(),
	})
}
