package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
	"github.com/john-revops11/keyword-gemini-insight/migrations"
)

// Store persists keyword rows and dashboard users. DB and SQLiteDB implement it.
type Store interface {
	InsertKeywords(ctx context.Context, recs []models.KeywordRecord) (int, error)
	ListKeywords(ctx context.Context, q KeywordQuery) (*models.KeywordPage, error)
	CountByIntent(ctx context.Context) (map[string]int64, error)
	UpsertUser(ctx context.Context, user *models.User) error
	GetUserBySub(ctx context.Context, sub string) (*models.User, error)
	Ping(ctx context.Context) error
	RunMigrations() error
	Close()
}

const sqliteScheme = "sqlite://"

// IsSQLiteURL reports whether url selects the embedded SQLite store.
func IsSQLiteURL(url string) bool {
	return strings.HasPrefix(url, sqliteScheme)
}

// Open connects to the store named by url: sqlite://path for SQLite, anything
// else is handed to pgx.
func Open(ctx context.Context, url string) (Store, error) {
	if IsSQLiteURL(url) {
		return OpenSQLite(ctx, strings.TrimPrefix(url, sqliteScheme))
	}
	return New(ctx, url)
}

// DB wraps a pgxpool connection pool.
type DB struct {
	Pool       *pgxpool.Pool
	connString string
}

// New creates a new database connection pool.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, connString: connString}, nil
}

// RunMigrations runs all embedded Postgres migrations.
func (d *DB) RunMigrations() error {
	sourceDriver, err := iofs.New(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, d.connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.Pool.Close()
}
