package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/migration"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ledgerDB returns a migrated database with venues Alpha (330.00) and
// Beta (250.00).
func ledgerDB(t *testing.T) *sql.DB {
	t.Helper()
	return testutil.MigratedSQLite(t,
		migration.SeedVenue{Owner: "Alpha", NightlyFee: dec("330.00")},
		migration.SeedVenue{Owner: "Beta", NightlyFee: dec("250.00")},
	)
}

func deps(db *sql.DB) Deps {
	return Deps{DB: db, Dialect: database.SQLite, Logger: testutil.QuietLogger()}
}

func venueID(t *testing.T, db *sql.DB, owner string) int64 {
	t.Helper()
	return testutil.Count(t, db, `SELECT id FROM venues WHERE owner = ?`, owner)
}
