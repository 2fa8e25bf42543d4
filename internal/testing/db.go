// Package testing provides testing utilities and helpers for the lookthrough project.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/lookthrough/internal/database"
	"github.com/aristath/lookthrough/internal/domain"
)

// NewTestDB creates a file-backed SQLite database with the history schema applied.
// The database is closed when the test ends.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}

// SeedPrices inserts daily closes for isin, keyed by canonical date.
func SeedPrices(t *testing.T, db *database.DB, isin string, prices domain.PriceHistory) {
	t.Helper()

	for date, closePrice := range prices {
		day, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			t.Fatalf("Invalid fixture date %q: %v", date, err)
		}
		if _, err := db.Conn().Exec(
			`INSERT OR REPLACE INTO daily_prices (isin, date, close) VALUES (?, ?, ?)`,
			isin, day.Unix(), closePrice,
		); err != nil {
			t.Fatalf("Failed to seed prices for %s: %v", isin, err)
		}
	}
}

// SeedMetadata stores a raw JSON metadata document for isin.
func SeedMetadata(t *testing.T, db *database.DB, isin, data string) {
	t.Helper()

	if _, err := db.Conn().Exec(
		`INSERT OR REPLACE INTO fund_metadata (isin, data) VALUES (?, ?)`,
		isin, data,
	); err != nil {
		t.Fatalf("Failed to seed metadata for %s: %v", isin, err)
	}
}

// ReopenReadOnly opens a second, query-only connection to the same file.
func ReopenReadOnly(t *testing.T, db *database.DB) *database.DB {
	t.Helper()

	ro, err := database.New(database.Config{
		Path:    db.Path(),
		Profile: database.ProfileReadOnly,
		Name:    db.Name() + "_ro",
	})
	if err != nil {
		t.Fatalf("Failed to reopen %s read-only: %v", db.Name(), err)
	}
	t.Cleanup(func() { _ = ro.Close() })
	return ro
}
