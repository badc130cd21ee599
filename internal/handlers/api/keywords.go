package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/john-revops11/keyword-gemini-insight/internal/db"
	"github.com/john-revops11/keyword-gemini-insight/internal/ingest"
	"github.com/john-revops11/keyword-gemini-insight/internal/middleware"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/internal/validation"
)

// KeywordStore persists and lists keyword rows.
type KeywordStore interface {
	InsertKeywords(ctx context.Context, recs []models.KeywordRecord) (int, error)
	ListKeywords(ctx context.Context, q db.KeywordQuery) (*models.KeywordPage, error)
}

// KeywordHandler handles stored keyword rows via JSON API.
type KeywordHandler struct {
	store  KeywordStore
	logger *zap.Logger
}

// NewKeywordHandler creates a new API keyword handler.
func NewKeywordHandler(store KeywordStore, logger *zap.Logger) *KeywordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordHandler{store: store, logger: logger}
}

type keywordListResponse struct {
	*models.KeywordPage
	TotalPages int `json:"total_pages"`
}

// List returns one page of stored keywords.
// Query: page, pageSize, sort, order (asc|desc|none), q, intent, mine.
func (h *KeywordHandler) List(c fiber.Ctx) error {
	q := db.KeywordQuery{
		Page:     fiber.Query[int](c, "page", 1),
		PageSize: fiber.Query[int](c, "pageSize", db.DefaultPageSize),
		Sort:     c.Query("sort"),
		Order:    c.Query("order"),
		Search:   c.Query("q"),
		Intent:   c.Query("intent"),
	}
	if fiber.Query[bool](c, "mine") {
		user := middleware.CurrentUser(c)
		if user == nil {
			return jsonError(c, fiber.StatusUnauthorized, "login required to list your keywords")
		}
		q.UserID = &user.ID
	}

	page, err := h.store.ListKeywords(c.Context(), q)
	if err != nil {
		if errors.Is(err, db.ErrInvalidSort) {
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to list keywords", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch keywords")
	}
	return jsonSuccess(c, keywordListResponse{KeywordPage: page, TotalPages: page.TotalPages()})
}

// Upload imports a spreadsheet or delimited file sent as the "file" form field.
func (h *KeywordHandler) Upload(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "please select a file to upload")
	}
	if fh.Size > ingest.MaxUploadBytes {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file is too large")
	}
	if _, err := ingest.DetectFormat(fh.Filename); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "failed to read uploaded file")
	}
	defer f.Close()

	rows, err := ingest.ReadRows(fh.Filename, f)
	if err != nil {
		return h.importError(c, err)
	}
	return h.importRows(c, rows)
}

type importRequest struct {
	Rows []ingest.Row `json:"rows"`
}

// Import stores rows that were already parsed on the client.
func (h *KeywordHandler) Import(c fiber.Ctx) error {
	var req importRequest
	if err := c.Bind().Body(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	return h.importRows(c, req.Rows)
}

func (h *KeywordHandler) importRows(c fiber.Ctx, rows []ingest.Row) error {
	res, err := ingest.Normalize(rows)
	if err != nil {
		return h.importError(c, err)
	}
	stampUser(c, res.Records)

	n, err := h.store.InsertKeywords(c.Context(), res.Records)
	if err != nil {
		return h.importError(c, err)
	}
	h.logger.Info("keywords imported", zap.Int("inserted", n), zap.Int("skipped", res.Skipped))
	return jsonSuccess(c, models.ImportResponse{Inserted: n, Skipped: res.Skipped})
}

type saveResultsRequest struct {
	Results []models.AnalysisResult `json:"results"`
}

// SaveResults persists analysis results as keyword rows.
func (h *KeywordHandler) SaveResults(c fiber.Ctx) error {
	var req saveResultsRequest
	if err := c.Bind().Body(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Results) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "no results to save")
	}

	recs := make([]models.KeywordRecord, 0, len(req.Results))
	for _, r := range req.Results {
		r.Keyword = validation.NormalizeKeyword(r.Keyword)
		if ok, msg := validation.ValidateKeyword(r.Keyword); !ok {
			return jsonError(c, fiber.StatusBadRequest, msg)
		}
		if r.Volume < 0 || r.Difficulty < 0 || r.Difficulty > 100 {
			return jsonError(c, fiber.StatusBadRequest, "result for "+r.Keyword+" is out of range")
		}
		r.Intent = models.Intent(strings.ToLower(string(r.Intent)))
		if _, ok := models.ParseIntent(string(r.Intent)); !ok && r.Intent != "" {
			r.Intent = models.IntentUnknown
		}
		recs = append(recs, r.ToRecord())
	}
	stampUser(c, recs)

	n, err := h.store.InsertKeywords(c.Context(), recs)
	if err != nil {
		return h.importError(c, err)
	}
	return jsonSuccess(c, models.ImportResponse{Inserted: n})
}

func (h *KeywordHandler) importError(c fiber.Ctx, err error) error {
	var ve *ingest.ValidationError
	switch {
	case errors.As(err, &ve):
		return jsonError(c, fiber.StatusBadRequest, ve.Msg)
	case errors.Is(err, db.ErrEmptyKeyword):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	h.logger.Error("failed to store keywords", zap.Error(err))
	return jsonError(c, fiber.StatusInternalServerError, "failed to store keywords")
}

func stampUser(c fiber.Ctx, recs []models.KeywordRecord) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return
	}
	for i := range recs {
		recs[i].UserID = &user.ID
	}
}
