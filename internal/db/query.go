package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

// Page size bounds for ListKeywords.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// keywordColumns is the column list used by every keyword_data SELECT and INSERT.
const keywordColumns = `id, keyword, intent, position, previous_position, traffic, traffic_percentage,
	volume, kd, cpc, url, competition, number_of_results, position_type, user_id, created_at`

// sortableColumns are the scalar columns a listing may be ordered by.
var sortableColumns = map[string]bool{
	"keyword":            true,
	"intent":             true,
	"position":           true,
	"previous_position":  true,
	"traffic":            true,
	"traffic_percentage": true,
	"volume":             true,
	"kd":                 true,
	"cpc":                true,
	"url":                true,
	"competition":        true,
	"number_of_results":  true,
	"position_type":      true,
	"created_at":         true,
}

// Sort orders. OrderNone means the default listing order.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
	OrderNone = ""
)

// KeywordQuery selects a page of keyword rows.
type KeywordQuery struct {
	Page     int
	PageSize int
	// Sort is a column name; it is ignored when Order is OrderNone.
	Sort  string
	Order string
	// Search matches keywords containing the text, case-insensitively.
	Search string
	Intent string
	UserID *uuid.UUID
}

// Normalize applies defaults and validates the sort column and order.
func (q KeywordQuery) Normalize() (KeywordQuery, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Order = strings.ToLower(strings.TrimSpace(q.Order))
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
	switch q.Order {
	case OrderAsc, OrderDesc:
		if q.Sort == "" {
			q.Sort = "created_at"
		}
		if !sortableColumns[q.Sort] {
			return q, fmt.Errorf("%w: %q", ErrInvalidSort, q.Sort)
		}
	case OrderNone, "none":
		q.Order, q.Sort = OrderNone, ""
	default:
		return q, fmt.Errorf("%w: order %q", ErrInvalidSort, q.Order)
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Intent = strings.ToLower(strings.TrimSpace(q.Intent))
	return q, nil
}

// Offset returns the row offset of the page.
func (q KeywordQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

func (d dialect) placeholder(n int) string {
	if d == dialectSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (d dialect) placeholders(from, count int) string {
	ph := make([]string, count)
	for i := range ph {
		ph[i] = d.placeholder(from + i)
	}
	return strings.Join(ph, ", ")
}

func (d dialect) likeOperator() string {
	if d == dialectSQLite {
		return "LIKE"
	}
	return "ILIKE"
}

// insertKeywordSQL returns the single-row INSERT for keyword_data.
func insertKeywordSQL(d dialect) string {
	return fmt.Sprintf("INSERT INTO keyword_data (%s) VALUES (%s)", keywordColumns, d.placeholders(1, 16))
}

// keywordArgs returns the INSERT arguments for rec in keywordColumns order.
func keywordArgs(rec *models.KeywordRecord) []any {
	var intent *string
	if rec.Intent != nil {
		s := string(*rec.Intent)
		intent = &s
	}
	return []any{
		rec.ID, rec.Keyword, intent, rec.Position, rec.PreviousPosition, rec.Traffic,
		rec.TrafficPercentage, rec.Volume, rec.KeywordDifficulty, rec.CPC, rec.URL,
		rec.Competition, rec.NumberOfResults, rec.PositionType, rec.UserID, rec.CreatedAt,
	}
}

// prepareRecords checks the stored-row invariants and stamps IDs and creation
// times. Timestamps are truncated to microseconds, the precision both backends keep.
func prepareRecords(recs []models.KeywordRecord, now time.Time) error {
	now = now.UTC().Truncate(time.Microsecond)
	for i := range recs {
		rec := &recs[i]
		if strings.TrimSpace(rec.Keyword) == "" {
			return fmt.Errorf("%w: row %d", ErrEmptyKeyword, i+1)
		}
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
	}
	return nil
}

// listKeywordSQL builds the page query and the matching count query.
func listKeywordSQL(d dialect, q KeywordQuery) (listSQL, countSQL string, args []any) {
	var where []string
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		where = append(where, fmt.Sprintf(`keyword %s %s ESCAPE '\'`, d.likeOperator(), d.placeholder(len(args))))
	}
	if q.Intent != "" {
		args = append(args, q.Intent)
		where = append(where, "intent = "+d.placeholder(len(args)))
	}
	if q.UserID != nil {
		args = append(args, *q.UserID)
		where = append(where, "user_id = "+d.placeholder(len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	order := "created_at DESC, id"
	if q.Order != OrderNone {
		order = fmt.Sprintf("%s %s NULLS LAST, created_at DESC, id", q.Sort, strings.ToUpper(q.Order))
	}

	countSQL = "SELECT COUNT(*) FROM keyword_data" + clause
	listSQL = fmt.Sprintf("SELECT %s FROM keyword_data%s ORDER BY %s LIMIT %s OFFSET %s",
		keywordColumns, clause, order, d.placeholder(len(args)+1), d.placeholder(len(args)+2))
	return listSQL, countSQL, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const countByIntentSQL = `SELECT COALESCE(intent, ''), COUNT(*) FROM keyword_data GROUP BY intent`

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanKeyword reads one row selected with keywordColumns. createdAt receives
// the created_at column; backends pass a destination their driver can fill.
func scanKeyword(row rowScanner, rec *models.KeywordRecord, createdAt any) error {
	var intent *string
	if err := row.Scan(
		&rec.ID,
		&rec.Keyword,
		&intent,
		&rec.Position,
		&rec.PreviousPosition,
		&rec.Traffic,
		&rec.TrafficPercentage,
		&rec.Volume,
		&rec.KeywordDifficulty,
		&rec.CPC,
		&rec.URL,
		&rec.Competition,
		&rec.NumberOfResults,
		&rec.PositionType,
		&rec.UserID,
		createdAt,
	); err != nil {
		return err
	}
	if intent != nil {
		i := models.Intent(*intent)
		rec.Intent = &i
	}
	return nil
}

func userSQL(tmpl string, d dialect, n int) string {
	return fmt.Sprintf(tmpl, d.placeholders(1, n))
}

// userArgs returns the upsert arguments. A fresh ID is proposed; on conflict
// the existing row keeps its own.
func userArgs(u *models.User) []any {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return []any{uuid.New(), u.Sub, u.Email, u.Name, u.Picture, now, now}
}
