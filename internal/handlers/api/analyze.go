package api

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"go.uber.org/zap"

	"github.com/john-revops11/keyword-gemini-insight/internal/enrich"
	"github.com/john-revops11/keyword-gemini-insight/internal/estimate"
	"github.com/john-revops11/keyword-gemini-insight/internal/ingest"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/searchvolume"
	"github.com/john-revops11/keyword-gemini-insight/internal/validation"
)

// SearchConsoleStateKey is the session key holding the state of a pending
// Search Console authorization.
const SearchConsoleStateKey = "search_console_state"

// MaxBatchKeywords bounds how many keywords one analyze request may carry.
const MaxBatchKeywords = 100

// Pipeline analyzes keyword batches.
type Pipeline interface {
	AnalyzeBatch(ctx context.Context, keywords []string) *enrich.BatchResult
}

// AnalyzeHandler serves the enrichment pipeline and its two backend RPCs.
type AnalyzeHandler struct {
	pipeline  Pipeline
	estimates enrich.Estimator
	volumes   enrich.VolumeFetcher
	logger    *zap.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(pipeline Pipeline, estimates enrich.Estimator, volumes enrich.VolumeFetcher, logger *zap.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyzeHandler{pipeline: pipeline, estimates: estimates, volumes: volumes, logger: logger}
}

type analyzeRequest struct {
	Keywords []string `json:"keywords"`
	Text     string   `json:"text"`
}

type analyzeResponse struct {
	Results []enrich.ItemResult `json:"results"`
	Summary models.BatchSummary `json:"summary"`
	AuthURL string              `json:"authUrl,omitempty"`
}

// Analyze runs the pipeline over a keyword list or pasted text.
func (h *AnalyzeHandler) Analyze(c fiber.Ctx) error {
	var req analyzeRequest
	if err := c.Bind().Body(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	raw := slices.Clone(req.Keywords)
	if req.Text != "" {
		raw = append(raw, strings.Split(req.Text, "\n")...)
	}
	keywords := ingest.CleanKeywords(raw)
	if len(keywords) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "please enter at least one keyword")
	}
	if len(keywords) > MaxBatchKeywords {
		return jsonError(c, fiber.StatusBadRequest, "too many keywords in one request")
	}

	b := h.pipeline.AnalyzeBatch(c.Context(), keywords)
	resp := analyzeResponse{Results: b.Items, Summary: b.Summary}
	if b.Authorization != nil {
		rememberState(c, b.Authorization.State)
		resp.AuthURL = b.Authorization.URL
	}
	return jsonSuccess(c, resp)
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

// AnalyzeKeywords is the model-estimate RPC. It answers with the bare
// {volume, difficulty, intent} object or {error}.
func (h *AnalyzeHandler) AnalyzeKeywords(c fiber.Ctx) error {
	var req keywordRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	keyword := validation.NormalizeKeyword(req.Keyword)
	if ok, msg := validation.ValidateKeyword(keyword); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	est, err := h.estimates.Estimate(c.Context(), keyword)
	if err != nil {
		h.logger.Warn("estimate failed", zap.String("keyword", keyword), zap.Error(err))
		if errors.Is(err, estimate.ErrBackendUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "AI backend unavailable"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "estimate failed"})
	}
	return c.JSON(est)
}

type searchDataRequest struct {
	Keyword string `json:"keyword"`
	Code    string `json:"code"`
}

type tokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Expiry       string `json:"expiry,omitempty"`
}

// GoogleSearchData is the search-volume RPC: a code is exchanged for tokens,
// a request without a bearer token gets an authorization URL, and a bearer
// token queries the volume.
func (h *AnalyzeHandler) GoogleSearchData(c fiber.Ctx) error {
	var req searchDataRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if req.Code == "" && token != "" {
		req.Keyword = validation.NormalizeKeyword(req.Keyword)
		if ok, msg := validation.ValidateKeyword(req.Keyword); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
		}
	}

	out, err := h.volumes.FetchVolume(c.Context(), searchvolume.Request{
		Keyword: req.Keyword,
		Token:   token,
		Code:    req.Code,
	})
	if err != nil {
		h.logger.Warn("search volume request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "search volume request failed"})
	}

	switch v := out.(type) {
	case searchvolume.AuthorizationRequired:
		rememberState(c, v.State)
		return c.JSON(fiber.Map{"authUrl": v.URL})
	case searchvolume.TokensIssued:
		tokens := tokensResponse{AccessToken: v.AccessToken, RefreshToken: v.RefreshToken}
		if !v.Expiry.IsZero() {
			tokens.Expiry = v.Expiry.UTC().Format(time.RFC3339)
		}
		return c.JSON(fiber.Map{"tokens": tokens})
	case searchvolume.Volume:
		return c.JSON(fiber.Map{"searchVolume": v.Count})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unexpected lookup outcome"})
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func rememberState(c fiber.Ctx, state string) {
	if sess := session.FromContext(c); sess != nil && state != "" {
		sess.Set(SearchConsoleStateKey, state)
	}
}
