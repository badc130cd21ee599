package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/migrations"
)

// SQLiteDB is a single-file keyword store for local use and tests.
type SQLiteDB struct {
	DB *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; this also keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLiteDB{DB: db}, nil
}

// RunMigrations runs all embedded SQLite migrations.
func (s *SQLiteDB) RunMigrations() error {
	sourceDriver, err := iofs.New(migrations.FS, "sqlite")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Not closed: closing the migrator would close s.DB.
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Ping checks that the database file is usable.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteDB) Close() {
	s.DB.Close()
}

// InsertKeywords inserts all records in one transaction.
func (s *SQLiteDB) InsertKeywords(ctx context.Context, recs []models.KeywordRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	if err := prepareRecords(recs, time.Now()); err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertKeywordSQL(dialectSQLite))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range recs {
		args := keywordArgs(&recs[i])
		args[len(args)-1] = sqliteTime{t: &recs[i].CreatedAt}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to insert keyword %q: %w", recs[i].Keyword, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit keywords: %w", err)
	}
	return len(recs), nil
}

// ListKeywords returns one page of keyword rows and the total match count.
func (s *SQLiteDB) ListKeywords(ctx context.Context, q KeywordQuery) (*models.KeywordPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	listSQL, countSQL, args := listKeywordSQL(dialectSQLite, q)
	args = sqliteArgs(args)

	page := &models.KeywordPage{Page: q.Page, PageSize: q.PageSize, Keywords: []models.KeywordRecord{}}
	if err := s.DB.QueryRowContext(ctx, countSQL, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count keywords: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, listSQL, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.KeywordRecord
		if err := scanKeyword(rows, &rec, &sqliteTime{t: &rec.CreatedAt}); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		page.Keywords = append(page.Keywords, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	return page, nil
}

// CountByIntent returns the number of rows per intent.
func (s *SQLiteDB) CountByIntent(ctx context.Context) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, countByIntentSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to count keywords by intent: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var intent string
		var n int64
		if err := rows.Scan(&intent, &n); err != nil {
			return nil, err
		}
		counts[intent] = n
	}
	return counts, rows.Err()
}

// UpsertUser creates or updates a user based on their OIDC subject.
func (s *SQLiteDB) UpsertUser(ctx context.Context, user *models.User) error {
	args := sqliteArgs(userArgs(user))
	return s.DB.QueryRowContext(ctx, userSQL(upsertUserSQL, dialectSQLite, len(args)), args...).
		Scan(&user.ID, &sqliteTime{t: &user.CreatedAt}, &sqliteTime{t: &user.UpdatedAt})
}

// GetUserBySub retrieves a user by their OIDC subject identifier.
func (s *SQLiteDB) GetUserBySub(ctx context.Context, sub string) (*models.User, error) {
	var user models.User
	err := s.DB.QueryRowContext(ctx, userSQL(userBySubSQL, dialectSQLite, 1), sub).Scan(
		&user.ID,
		&user.Sub,
		&user.Email,
		&user.Name,
		&user.Picture,
		&sqliteTime{t: &user.CreatedAt},
		&sqliteTime{t: &user.UpdatedAt},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// sqliteTimeLayout sorts lexically in time order for UTC values.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000Z07:00"

// sqliteTime stores times as fixed-width UTC text and reads back whatever
// representation the driver returns.
type sqliteTime struct {
	t *time.Time
}

func (s sqliteTime) Value() (driver.Value, error) {
	return s.t.UTC().Format(sqliteTimeLayout), nil
}

func (s *sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (s *sqliteTime) parse(v string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", v)
}

// sqliteArgs converts time values so they are stored in sqliteTimeLayout.
func sqliteArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			a = sqliteTime{t: &t}
		}
		out[i] = a
	}
	return out
}
