package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"go.uber.org/zap"

	"github.com/john-revops11/keyword-gemini-insight/internal/handlers/api"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
)

// Authorizer exchanges a Search Console authorization code and keeps the token.
type Authorizer interface {
	Authorize(ctx context.Context, code string) (searchvolume.TokensIssued, error)
}

// SearchConsoleHandler completes the Search Console authorization redirect.
type SearchConsoleHandler struct {
	authorizer Authorizer
	logger     *zap.Logger
}

// NewSearchConsoleHandler creates a new Search Console callback handler.
func NewSearchConsoleHandler(authorizer Authorizer, logger *zap.Logger) *SearchConsoleHandler {
	return &SearchConsoleHandler{authorizer: authorizer, logger: logger}
}

// Callback handles GET /oauth/callback?code=&state=. The state must match the
// one handed out with the authorization URL in this session.
func (h *SearchConsoleHandler) Callback(c fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		return fiber.NewError(fiber.StatusBadRequest, "Search Console access was not granted: "+reason)
	}

	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}
	saved, _ := sess.Get(api.SearchConsoleStateKey).(string)
	if saved == "" || saved != c.Query("state") {
		return fiber.NewError(fiber.StatusBadRequest, "invalid state")
	}
	sess.Delete(api.SearchConsoleStateKey)

	code := c.Query("code")
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing authorization code")
	}

	if _, err := h.authorizer.Authorize(c.Context(), code); err != nil {
		h.logger.Warn("search console code exchange failed", zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "failed to exchange authorization code")
	}
	return c.Redirect().To("/?authorized=1")
}
