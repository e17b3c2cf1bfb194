package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/uwdesk/decisioncore/internal/config"
	"github.com/uwdesk/decisioncore/internal/domain/extraction"
	"github.com/uwdesk/decisioncore/internal/domain/narrative"
	"github.com/uwdesk/decisioncore/internal/domain/scoring"
	"github.com/uwdesk/decisioncore/internal/platform/auth"
	"github.com/uwdesk/decisioncore/internal/platform/db"
	"github.com/uwdesk/decisioncore/internal/platform/middleware"
	"github.com/uwdesk/decisioncore/internal/platform/telemetry"
)

const extractionPath = "/api/v1/extractions"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	eng, err := loadEngines(cfg, "")
	if err != nil {
		logger.Error().Err(err).Msg("failed to load rule sets")
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "uw-server",
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	metrics := telemetry.NewProvider()
	registerPoolGauges(metrics, pool)

	svc, err := eng.narrativeService(cfg, narrative.NewCommunicationRepoPG(pool), db.NewTransactor(pool), logger)
	if err != nil {
		return err
	}
	svc.WithMetrics(metrics)

	e := newEcho(cfg, logger, eng, svc, metrics)
	e.GET("/health/db", db.HealthHandler(pool))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).
			Str("narrative_variant", cfg.NarrativeVariant).
			Str("scoring_model", eng.scorer.ModelVersion()).
			Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the HTTP surface. svc may be nil, in which case the
// communication routes are not registered.
func newEcho(cfg *config.Config, logger zerolog.Logger, eng *engines, svc *narrative.Service, metrics *telemetry.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":        "ok",
			"version":       version,
			"scoring_model": eng.scorer.ModelVersion(),
		})
	})

	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.ExtractionBodyLimit, extractionPath))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	apiV1.Use(authMiddleware(cfg, logger))

	extraction.NewHandler(eng.extractor).RegisterRoutes(apiV1)
	scoring.NewHandler(eng.scorer).RegisterRoutes(apiV1)
	if svc != nil {
		narrative.NewHandler(svc).RegisterRoutes(apiV1)
	}

	return e
}

// authMiddleware validates bearer tokens when auth is configured; otherwise,
// which Validate allows only in development, every caller is an admin.
func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.AuthConfigured() {
		logger.Warn().Msg("authentication disabled, all requests run as admin")
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
}

func registerPoolGauges(metrics *telemetry.Provider, pool *pgxpool.Pool) {
	metrics.GaugeFunc("db_pool_total_connections", "Open database connections.", func() float64 {
		return float64(pool.Stat().TotalConns())
	})
	metrics.GaugeFunc("db_pool_acquired_connections", "Database connections in use.", func() float64 {
		return float64(pool.Stat().AcquiredConns())
	})
	metrics.GaugeFunc("db_pool_idle_connections", "Idle database connections.", func() float64 {
		return float64(pool.Stat().IdleConns())
	})
}
