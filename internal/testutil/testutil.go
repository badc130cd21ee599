// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/john-revops11/keyword-gemini-insight/internal/db"
	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

// TestDB creates a migrated SQLite store in a temporary directory. It is
// closed when the test finishes.
func TestDB(t *testing.T) *db.SQLiteDB {
	t.Helper()

	store, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "keywords.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := store.RunMigrations(); err != nil {
		store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// CreateTestUser creates a dashboard user and returns it.
func CreateTestUser(t *testing.T, store db.Store, sub, email string) *models.User {
	t.Helper()

	user := &models.User{
		Sub:   sub,
		Email: email,
		Name:  fmt.Sprintf("Test User %s", sub),
	}
	if err := store.UpsertUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestKeywords stores one row per keyword with the given volume and
// returns the stored records.
func CreateTestKeywords(t *testing.T, store db.Store, volume int64, keywords ...string) []models.KeywordRecord {
	t.Helper()

	recs := make([]models.KeywordRecord, len(keywords))
	for i, kw := range keywords {
		v := volume
		recs[i] = models.KeywordRecord{Keyword: kw, Volume: &v}
	}
	if _, err := store.InsertKeywords(context.Background(), recs); err != nil {
		t.Fatalf("failed to create test keywords: %v", err)
	}
	return recs
}
