// Package app assembles the keyword pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/storage/redis/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/john-revops11/keyword-gemini-insight/internal/config"
	"github.com/john-revops11/keyword-gemini-insight/internal/db"
	"github.com/john-revops11/keyword-gemini-insight/internal/enrich"
	"github.com/john-revops11/keyword-gemini-insight/internal/estimate"
	"github.com/john-revops11/keyword-gemini-insight/internal/metrics"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
	"github.com/john-revops11/keyword-gemini-insight/internal/server"
	"github.com/john-revops11/keyword-gemini-insight/internal/tokenstore"
)

// App holds the wired components.
type App struct {
	Cfg       *config.Config
	Logger    *zap.Logger
	Store     db.Store
	Storage   fiber.Storage // nil without REDIS_URL
	Tokens    *tokenstore.Store
	Volumes   *searchvolume.Client
	Estimates *estimate.Client
	Pipeline  *enrich.Orchestrator
}

// New opens the store, runs migrations and builds the pipeline.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.RunMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed")

	a := &App{Cfg: cfg, Logger: logger, Store: store}

	var cache estimate.Cache
	if cfg.RedisURL != "" {
		storage := redis.New(redis.Config{URL: cfg.RedisURL})
		a.Storage = storage
		cache = storage
	}

	metrics.Init(store, logger.Named("metrics"))
	a.Tokens = tokenstore.New()
	a.Volumes = NewVolumeClient(cfg, logger)
	a.Estimates = NewEstimateClient(ctx, cfg, cache, logger)
	a.Pipeline = enrich.New(a.Volumes, a.Estimates, a.Tokens,
		enrich.WithMaxConcurrency(cfg.AnalyzeMaxConcurrency),
		enrich.WithLogger(logger.Named("enrich")),
	)
	return a, nil
}

// NewVolumeClient builds the Search Console client from configuration.
func NewVolumeClient(cfg *config.Config, logger *zap.Logger) *searchvolume.Client {
	if !cfg.SearchConsoleEnabled() {
		logger.Warn("search console credentials not configured; authorization will fail")
	}
	return searchvolume.New(searchvolume.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
		Endpoint:     cfg.SearchConsoleEndpoint,
		Window: searchvolume.Window{
			Start: cfg.SearchWindowStart,
			End:   cfg.SearchWindowEnd,
		},
	}, searchvolume.WithLogger(logger.Named("searchvolume")))
}

// NewEstimateClient builds the model client. Without an API key the client
// reports every estimate as unavailable.
func NewEstimateClient(ctx context.Context, cfg *config.Config, cache estimate.Cache, logger *zap.Logger) *estimate.Client {
	var completer estimate.Completer
	gemini, err := estimate.NewGeminiCompleter(ctx, estimate.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	switch {
	case err == nil:
		completer = gemini
	case errors.Is(err, estimate.ErrBackendUnavailable):
		logger.Warn("GEMINI_API_KEY not set; estimates are unavailable")
	default:
		logger.Error("failed to create Gemini client", zap.Error(err))
	}

	opts := []estimate.Option{
		estimate.WithLimiter(rate.NewLimiter(rate.Limit(cfg.AIRequestsPerSecond), 1)),
		estimate.WithLogger(logger.Named("estimate")),
	}
	opts = append(opts, estimate.WithRetry(cfg.AIMaxRetries, estimate.DefaultBackoff()))
	if cache != nil {
		opts = append(opts, estimate.WithCache(cache, cfg.EstimateCacheTTL))
	}
	return estimate.NewClient(completer, opts...)
}

// Server builds the HTTP server with all routes registered.
func (a *App) Server(ctx context.Context) (*server.Server, error) {
	srv := server.New(a.Cfg, a.Logger, a.Storage)
	err := srv.RegisterRoutes(ctx, server.Deps{
		Store:     a.Store,
		Pipeline:  a.Pipeline,
		Estimates: a.Estimates,
		Volumes:   a.Volumes,
		Tokens:    a.Tokens,
	})
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// Close releases the store and shared storage.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn("failed to close storage", zap.Error(err))
		}
	}
	a.Store.Close()
	_ = a.Logger.Sync()
}
