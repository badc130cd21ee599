package server

import (
	"context"

	"github.com/john-revops11/keyword-gemini-insight/internal/db"
	"github.com/john-revops11/keyword-gemini-insight/internal/enrich"
	"github.com/john-revops11/keyword-gemini-insight/internal/handlers"
	"github.com/john-revops11/keyword-gemini-insight/internal/handlers/api"
	"github.com/john-revops11/keyword-gemini-insight/internal/middleware"
	"github.com/john-revops11/keyword-gemini-insight/internal/tokenstore"
)

// Deps are the components the routes serve.
type Deps struct {
	Store     db.Store
	Pipeline  *enrich.Orchestrator
	Estimates enrich.Estimator
	Volumes   enrich.VolumeFetcher
	Tokens    *tokenstore.Store
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(ctx context.Context, deps Deps) error {
	loginEnabled := s.Cfg.OIDCEnabled()
	authMiddleware := middleware.NewAuthMiddleware(deps.Store, loginEnabled)

	probeHandler := api.NewProbeHandler(deps.Store)
	analyzeHandler := api.NewAnalyzeHandler(deps.Pipeline, deps.Estimates, deps.Volumes, s.Logger.Named("api"))
	keywordHandler := api.NewKeywordHandler(deps.Store, s.Logger.Named("api"))
	dashboardHandler := handlers.NewDashboardHandler(deps.Store, deps.Tokens, loginEnabled, s.Logger)
	searchConsoleHandler := handlers.NewSearchConsoleHandler(deps.Pipeline, s.Logger.Named("searchconsole"))

	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)

	if loginEnabled {
		authHandler, err := handlers.NewAuthHandler(ctx, s.Cfg, deps.Store, s.Logger.Named("auth"))
		if err != nil {
			return err
		}
		s.App.Get("/auth/login", authHandler.Login)
		s.App.Get("/auth/callback", authHandler.Callback)
		s.App.Get("/auth/logout", authHandler.Logout)
	} else {
		s.Logger.Info("dashboard login disabled; set OIDC_ISSUER and OIDC_CLIENT_ID to enable")
	}

	s.App.Get("/oauth/callback", authMiddleware.RequireAuth, searchConsoleHandler.Callback)
	s.App.Get("/", authMiddleware.RequireAuth, dashboardHandler.Index)

	apiGroup := s.App.Group("/api", authMiddleware.RequireAuth)
	apiGroup.Post("/analyze", analyzeHandler.Analyze)
	apiGroup.Post("/analyze-keywords", analyzeHandler.AnalyzeKeywords)
	apiGroup.Post("/google-search-data", analyzeHandler.GoogleSearchData)
	apiGroup.Get("/keywords", keywordHandler.List)
	apiGroup.Post("/keywords/upload", keywordHandler.Upload)
	apiGroup.Post("/keywords/import", keywordHandler.Import)
	apiGroup.Post("/keywords/results", keywordHandler.SaveResults)

	return nil
}
