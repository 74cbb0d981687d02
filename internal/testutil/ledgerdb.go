// Package testutil provides database fixtures shared by package tests.
// Every fixture is a fresh SQLite file under t.TempDir with foreign keys
// enforced, so RESTRICT, CASCADE, UNIQUE and CHECK behave as in production.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/migration"
)

// QuietLogger returns a gommon logger that writes nowhere.
func QuietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

// OpenSQLite opens an empty database that is closed when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.Open(database.SQLite, database.SQLiteDSN(filepath.Join(t.TempDir(), "ledger.db")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// BaselineSQLite returns a database holding the pre-venue schema.
func BaselineSQLite(t testing.TB) *sql.DB {
	t.Helper()
	db := OpenSQLite(t)
	m, err := migration.New(db, database.SQLite, QuietLogger(), nil)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	return db
}

// MigratedSQLite returns a fully migrated database seeded with seeds.  The
// first seed is the default venue.  With no seeds a single "House" venue
// charging 330.00 is used.
func MigratedSQLite(t testing.TB, seeds ...migration.SeedVenue) *sql.DB {
	t.Helper()
	db := BaselineSQLite(t)
	if len(seeds) == 0 {
		seeds = []migration.SeedVenue{{Owner: "House", NightlyFee: decimal.RequireFromString("330.00")}}
	}
	m, err := migration.New(db, database.SQLite, QuietLogger(), nil)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if _, err := m.Up(context.Background(), migration.Plan{Seeds: seeds, DefaultOwner: seeds[0].Owner}); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return db
}

// Count runs a COUNT(*) style query and returns the result.
func Count(t testing.TB, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

// Exec runs a statement and fails the test on error.
func Exec(t testing.TB, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
