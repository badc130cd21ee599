package handlers

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/john-revops11/keyword-gemini-insight/internal/db"
	"github.com/john-revops11/keyword-gemini-insight/internal/handlers/api"
	"github.com/john-revops11/keyword-gemini-insight/internal/middleware"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

// TokenChecker reports whether a Search Console token is held.
type TokenChecker interface {
	Get() (string, bool)
}

// DashboardHandler renders the keyword table.
type DashboardHandler struct {
	store        api.KeywordStore
	tokens       TokenChecker
	loginEnabled bool
	logger       *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(store api.KeywordStore, tokens TokenChecker, loginEnabled bool, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{store: store, tokens: tokens, loginEnabled: loginEnabled, logger: logger}
}

type column struct {
	Label  string
	Href   string
	Marker string
}

type keywordRow struct {
	Keyword     string
	Intent      string
	Volume      string
	Difficulty  string
	CPC         string
	Competition string
	Position    string
	URL         string
}

var tableColumns = []struct{ label, sort string }{
	{"Keyword", "keyword"},
	{"Intent", "intent"},
	{"Volume", "volume"},
	{"KD", "kd"},
	{"CPC", "cpc"},
	{"Competition", "competition"},
	{"Position", "position"},
	{"URL", "url"},
}

// Index renders one page of stored keywords.
func (h *DashboardHandler) Index(c fiber.Ctx) error {
	q := db.KeywordQuery{
		Page:     fiber.Query[int](c, "page", 1),
		PageSize: fiber.Query[int](c, "pageSize", db.DefaultPageSize),
		Sort:     c.Query("sort"),
		Order:    c.Query("order"),
		Search:   c.Query("q"),
		Intent:   c.Query("intent"),
	}
	q, err := q.Normalize()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	page, err := h.store.ListKeywords(c.Context(), q)
	if err != nil {
		if errors.Is(err, db.ErrInvalidSort) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error("failed to list keywords", zap.Error(err))
		return err
	}

	rows := make([]keywordRow, len(page.Keywords))
	for i, rec := range page.Keywords {
		rows[i] = toRow(rec)
	}

	data := fiber.Map{
		"Title":          "Keywords",
		"User":           middleware.CurrentUser(c),
		"LoginEnabled":   h.loginEnabled,
		"JustAuthorized": c.Query("authorized") == "1",
		"Query":          q,
		"Page":           page,
		"TotalPages":     max(page.TotalPages(), 1),
		"Rows":           rows,
		"Columns":        columns(q),
		"Intents": []models.Intent{
			models.IntentInformational, models.IntentTransactional, models.IntentNavigational,
			models.IntentCommercial, models.IntentUnknown,
		},
	}
	if _, ok := h.tokens.Get(); ok {
		data["Connected"] = true
	}
	if q.Page > 1 {
		data["PrevHref"] = pageHref(q, q.Page-1)
	}
	if q.Page < page.TotalPages() {
		data["NextHref"] = pageHref(q, q.Page+1)
	}
	return c.Render("index", data)
}

// columns builds the header links. Clicking a column cycles its order
// ascending, descending, then back to unsorted.
func columns(q db.KeywordQuery) []column {
	out := make([]column, len(tableColumns))
	for i, col := range tableColumns {
		next := q
		next.Page = 1
		next.Sort, next.Order = col.sort, db.OrderAsc
		marker := ""
		if q.Sort == col.sort {
			switch q.Order {
			case db.OrderAsc:
				next.Order, marker = db.OrderDesc, " ▲"
			case db.OrderDesc:
				next.Sort, next.Order, marker = "", db.OrderNone, " ▼"
			}
		}
		out[i] = column{Label: col.label, Href: queryHref(next), Marker: marker}
	}
	return out
}

func pageHref(q db.KeywordQuery, page int) string {
	q.Page = page
	return queryHref(q)
}

func queryHref(q db.KeywordQuery) string {
	v := url.Values{}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize != db.DefaultPageSize {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Order != db.OrderNone {
		v.Set("sort", q.Sort)
		v.Set("order", q.Order)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Intent != "" {
		v.Set("intent", q.Intent)
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

func toRow(rec models.KeywordRecord) keywordRow {
	row := keywordRow{
		Keyword:     rec.Keyword,
		Intent:      "-",
		Volume:      optInt(rec.Volume),
		Difficulty:  optInt(rec.KeywordDifficulty),
		CPC:         optFloat(rec.CPC, 2),
		Competition: optFloat(rec.Competition, 2),
		Position:    optInt(rec.Position),
	}
	if rec.Intent != nil {
		row.Intent = string(*rec.Intent)
	}
	if rec.URL != nil {
		row.URL = *rec.URL
	}
	return row
}

func optInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func optFloat(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
