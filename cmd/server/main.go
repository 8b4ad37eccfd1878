// Package main wires together and starts the authorization/resource
// server process: Postgres-backed session and refresh storage, a
// Redis-backed replay store, Ed25519 access token signing/verification,
// and DPoP proof validation, behind a chi HTTP router.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	appauth "github.com/dpopcore/authcore/internal/application/auth"
	"github.com/dpopcore/authcore/internal/infrastructure/persistence/postgres"
	"github.com/dpopcore/authcore/internal/infrastructure/persistence/redis"
	"github.com/dpopcore/authcore/internal/infrastructure/security/dpop"
	"github.com/dpopcore/authcore/internal/infrastructure/security/jwt"
	"github.com/dpopcore/authcore/internal/infrastructure/security/keys"
	"github.com/dpopcore/authcore/internal/interfaces/http/handlers"
	"github.com/dpopcore/authcore/internal/interfaces/http/middleware"
)

const (
	defaultAccessTTL   = 5 * time.Minute
	defaultRefreshTTL  = 30 * 24 * time.Hour
	defaultIatLeeway   = 5 * time.Second
	defaultProofMaxAge = 60 * time.Second
	shutdownTimeout    = 10 * time.Second
	readHeaderTimeout  = 5 * time.Second
	poolStatsInterval  = 30 * time.Second
)

func main() {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := postgres.NewDB(cfg.postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer postgres.Close(db) //nolint:errcheck // best effort on shutdown

	redisClient, err := redis.NewClient(cfg.redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close() //nolint:errcheck // best effort on shutdown

	signingKey, err := keys.LoadSigningKeyFile(cfg.signingKeyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load signing key")
	}
	verifyingKey, err := keys.LoadVerifyingKeyFile(cfg.verifyingKeyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load verifying key")
	}

	accessIssuer, err := jwt.NewAccessIssuer(signingKey, jwt.IssuerConfig{
		Issuer:    cfg.issuer,
		Audience:  cfg.audience,
		AccessTTL: cfg.accessTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct access issuer")
	}

	accessVerifier, err := jwt.NewAccessVerifier(verifyingKey, jwt.VerifierConfig{
		Issuer:   cfg.issuer,
		Audience: cfg.audience,
		Leeway:   defaultIatLeeway,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct access verifier")
	}

	dpopVerifier := dpop.NewVerifier(dpop.Policy{
		Required:      cfg.dpopRequired,
		IatLeeway:     defaultIatLeeway,
		MaxAge:        defaultProofMaxAge,
		RequireAth:    true,
		PublicBaseURL: cfg.publicBaseURL,
	})

	replayStore := redis.NewReplayStore(redisClient)

	sessions := postgres.NewSessionRepository(db)
	refreshRepo := postgres.NewRefreshRepository(db)

	tokenIssuer, err := appauth.NewTokenIssuer(sessions, refreshRepo, accessIssuer, cfg.refreshTTL, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct token issuer")
	}
	refreshManager := appauth.NewRefreshManager(refreshRepo, sessions, accessIssuer, &logger)

	tokenHandler := handlers.NewTokenHandler(tokenIssuer, refreshManager, logger)
	healthHandler := handlers.NewHealthHandler(db, redisClient, logger)

	metricsCollector := middleware.NewMetricsCollector()

	rateLimitCfg := middleware.DefaultRateLimiterConfig(redisClient.UnderlyingClient(), logger)
	rateLimitCfg.MetricsCollector = metricsCollector

	router := handlers.NewRouter(
		tokenHandler,
		healthHandler,
		metricsCollector,
		handlers.MiddlewareConfig{
			Logger: logger,
			DpopAuth: middleware.DpopAuthConfig{
				AccessVerifier: accessVerifier,
				DpopVerifier:   dpopVerifier,
				ReplayStore:    replayStore,
				ReplayTTL:      defaultProofMaxAge,
				Logger:         logger,
			},
			RateLimit: rateLimitCfg,
		},
		cfg.isProd,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	go reportPoolStats(statsCtx, db, redisClient, metricsCollector)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// reportPoolStats periodically feeds database and Redis connection pool
// stats into Prometheus until ctx is cancelled.
func reportPoolStats(ctx context.Context, db *sqlx.DB, redisClient *redis.Client, collector *middleware.MetricsCollector) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dbStats := db.Stats()
			collector.UpdateDatabaseStats(dbStats.InUse, dbStats.Idle, dbStats.MaxOpenConnections)

			poolStats := redisClient.UnderlyingClient().PoolStats()
			collector.UpdateRedisStats(int(poolStats.TotalConns - poolStats.IdleConns))
		}
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		level = lvl
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Caller().Logger()
}

type config struct {
	postgres         postgres.Config
	redis            redis.Config
	signingKeyPath   string
	verifyingKeyPath string
	issuer           string
	audience         string
	accessTTL        time.Duration
	refreshTTL       time.Duration
	dpopRequired     bool
	publicBaseURL    string
	port             string
	isProd           bool
}

func loadConfig() (config, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = envOr("POSTGRES_HOST", pgCfg.Host)
	if port, err := strconv.Atoi(envOr("POSTGRES_PORT", strconv.Itoa(pgCfg.Port))); err == nil {
		pgCfg.Port = port
	}
	pgCfg.User = envOr("POSTGRES_USER", pgCfg.User)
	pgCfg.Password = envOr("POSTGRES_PASSWORD", pgCfg.Password)
	pgCfg.Database = envOr("POSTGRES_DB", pgCfg.Database)
	pgCfg.SSLMode = envOr("POSTGRES_SSLMODE", pgCfg.SSLMode)

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = envOr("REDIS_HOST", redisCfg.Host)
	if port, err := strconv.Atoi(envOr("REDIS_PORT", strconv.Itoa(redisCfg.Port))); err == nil {
		redisCfg.Port = port
	}
	redisCfg.Password = envOr("REDIS_PASSWORD", redisCfg.Password)

	cfg := config{
		postgres:         pgCfg,
		redis:            redisCfg,
		signingKeyPath:   envOr("SIGNING_KEY_PATH", "/etc/authcore/signing.pem"),
		verifyingKeyPath: envOr("VERIFYING_KEY_PATH", "/etc/authcore/verifying.pem"),
		issuer:           envOr("TOKEN_ISSUER", "https://authcore.local"),
		audience:         envOr("TOKEN_AUDIENCE", "https://api.authcore.local"),
		accessTTL:        defaultAccessTTL,
		refreshTTL:       defaultRefreshTTL,
		dpopRequired:     envOr("DPOP_REQUIRED", "true") == "true",
		publicBaseURL:    os.Getenv("PUBLIC_BASE_URL"),
		port:             envOr("PORT", "8080"),
		isProd:           envOr("ENVIRONMENT", "development") == "production",
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
