package main

import (
	"context"
	"fmt"
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

	"github.com/ehr/labextract/internal/config"
	"github.com/ehr/labextract/internal/domain/extraction"
	"github.com/ehr/labextract/internal/labextract"
	"github.com/ehr/labextract/internal/platform/auth"
	"github.com/ehr/labextract/internal/platform/cache"
	"github.com/ehr/labextract/internal/platform/db"
	"github.com/ehr/labextract/internal/platform/metrics"
	"github.com/ehr/labextract/internal/platform/middleware"
	"github.com/ehr/labextract/internal/platform/vocabpack"
)

const (
	version        = "0.1.0"
	batchBodyLimit = "20M"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "labextract",
		Short:        "Lab report value extraction service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(enginesCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the extraction API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// buildRegistry registers the built-in engines plus any vocabulary packs
// found in cfg.VocabularyDir.
func buildRegistry(cfg *config.Config, logger zerolog.Logger) (*labextract.Registry, error) {
	reg, err := labextract.DefaultRegistry()
	if err != nil {
		return nil, err
	}
	if cfg.VocabularyDir != "" {
		ids, err := vocabpack.Register(reg, cfg.VocabularyDir)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary packs: %w", err)
		}
		logger.Info().Strs("engines", ids).Str("dir", cfg.VocabularyDir).Msg("registered vocabulary packs")
	}
	return reg, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine registry")
	}

	ctx := context.Background()
	deps := serverDeps{cfg: cfg, logger: logger, metrics: metrics.New()}

	// Database
	var repo extraction.Repository
	if cfg.PersistenceEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		deps.pool = pool
		repo = extraction.NewRepoPG(pool)
	} else {
		logger.Warn().Int("capacity", extraction.DefaultMemoryCapacity).Msg("DATABASE_URL not set; keeping extractions in memory")
	}

	svc, err := extraction.NewService(reg, cfg.DefaultEngine, repo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create extraction service")
	}
	svc.SetMetrics(deps.metrics)
	svc.SetConcurrency(cfg.BatchConcurrency)

	// Cache
	if cfg.CacheEnabled() {
		client, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("result cache unavailable; continuing without it")
		} else {
			defer client.Close()
			deps.cache = client
			svc.SetCache(cache.NewResultCache(client.Client, cfg.CacheTTL))
			logger.Info().Dur("ttl", cfg.CacheTTL).Msg("result cache enabled")
		}
	}
	deps.svc = svc

	e := newServer(deps)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Int("engines", reg.Len()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

type serverDeps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	svc     *extraction.Service
	metrics *metrics.Metrics
	pool    *pgxpool.Pool // nil without persistence
	cache   *cache.Client // nil without a cache
}

func newServer(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(d.metrics.Middleware())
	e.Use(middleware.SecurityHeaders(d.cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(d.cfg.MaxBodySize, batchBodyLimit))
	e.Use(middleware.RequestTimeout(d.cfg.RequestTimeout, "/metrics", "/health"))

	// Auth middleware
	if d.cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     d.cfg.AuthIssuer,
			Audience:   d.cfg.AuthAudience,
			SigningKey: []byte(d.cfg.JWTSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		status := map[string]interface{}{
			"status":      "ok",
			"version":     version,
			"engines":     len(d.svc.Engines()),
			"persistence": d.pool != nil,
			"cache":       "disabled",
		}
		if d.cache != nil {
			status["cache"] = "ok"
			if err := d.cache.Health(c.Request().Context()); err != nil {
				status["cache"] = "unavailable"
			}
		}
		return c.JSON(http.StatusOK, status)
	})
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool))
	}
	e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))

	apiV1 := e.Group("/api/v1")
	extraction.NewHandler(d.svc).RegisterRoutes(apiV1)
	return e
}
