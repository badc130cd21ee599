package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// testStores returns every backend the tests can reach. SQLite always runs;
// Postgres needs TEST_DATABASE_URL.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	stores := map[string]Store{}

	lite, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "keywords.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := lite.RunMigrations(); err != nil {
		lite.Close()
		t.Fatalf("RunMigrations() error = %v", err)
	}
	t.Cleanup(lite.Close)
	stores["sqlite"] = lite

	if connString := os.Getenv("TEST_DATABASE_URL"); connString != "" {
		pg, err := New(ctx, connString)
		if err != nil {
			t.Fatalf("failed to connect to test database: %v", err)
		}
		if err := pg.RunMigrations(); err != nil {
			pg.Close()
			t.Fatalf("failed to run migrations: %v", err)
		}
		clean := func() {
			pg.Pool.Exec(ctx, "DELETE FROM keyword_data")
			pg.Pool.Exec(ctx, "DELETE FROM users")
		}
		clean()
		t.Cleanup(func() {
			clean()
			pg.Close()
		})
		stores["postgres"] = pg
	}
	return stores
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) { fn(t, s) })
	}
}
