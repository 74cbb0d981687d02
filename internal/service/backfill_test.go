package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/labstack/gommon/log"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/testutil"
)

// insertBareSessions writes sessions the way the ledger did before every
// session carried a rent line item.
func insertBareSessions(t *testing.T, db *sql.DB, venue int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		testutil.Exec(t, db, `INSERT INTO sessions (date, fee_collected, venue_id) VALUES (?, 0, ?)`,
			fmt.Sprintf("2025-10-%02d", i+1), venue)
	}
}

func TestBackfillCreatesMissingRentOnce(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	insertBareSessions(t, db, venueID(t, db, "Alpha"), 5)
	svc := NewBackfillService(deps(db))

	res, err := svc.Run(ctx, BackfillOptions{Amount: dec("330.00")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Missing != 5 || res.Created != 5 || !res.Verified {
		t.Fatalf("first run = %+v", res)
	}
	rows, err := db.Query(`SELECT amount, description FROM line_items WHERE category = 'rent'`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var li model.LineItem
		if err := rows.Scan(&li.Amount, &li.Description); err != nil {
			t.Fatal(err)
		}
		if !li.Amount.Equal(dec("330.00")) || li.Description != model.BackfilledRentDescription {
			t.Fatalf("backfilled row = %s %q", li.Amount, li.Description)
		}
	}

	again, err := svc.Run(ctx, BackfillOptions{Amount: dec("330.00")})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Missing != 0 || again.Created != 0 || !again.Verified {
		t.Fatalf("second run = %+v", again)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items`); n != 5 {
		t.Fatalf("line items = %d, want 5", n)
	}
}

func TestBackfillSkipsSessionsWithRent(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	alpha := venueID(t, db, "Alpha")
	sessions := NewSessionService(deps(db))
	for _, date := range []string{"2026-01-10", "2026-01-11"} {
		if _, _, err := sessions.CreateSession(ctx, CreateSessionInput{Date: date, VenueID: alpha}); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	insertBareSessions(t, db, alpha, 3)

	res, err := NewBackfillService(deps(db)).Run(ctx, BackfillOptions{Amount: dec("100"), BatchSize: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Created != 3 || res.Sessions != 5 || res.RentLineItems != 5 || !res.Verified {
		t.Fatalf("result = %+v", res)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items WHERE amount = 330`); n != 2 {
		t.Fatalf("creation-time rent rows = %d, want 2 untouched", n)
	}
}

func TestBackfillBatchSkipsRentWrittenAfterSnapshot(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	insertBareSessions(t, db, venueID(t, db, "Alpha"), 1)
	svc := NewBackfillService(deps(db))

	missing, err := svc.lineItems.SessionsMissingRent(ctx)
	if err != nil || len(missing) != 1 {
		t.Fatalf("SessionsMissingRent = %v, %v", missing, err)
	}
	// Rent arrives between the snapshot and the batch.
	testutil.Exec(t, db, `INSERT INTO line_items (session_id, category, description, amount) VALUES (?, 'rent', 'late', 330)`, missing[0])

	created, err := svc.insertBatch(ctx, missing, dec("330"))
	if err != nil {
		t.Fatalf("insertBatch: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0", created)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items WHERE category = 'rent' AND session_id = ?`, missing[0]); n != 1 {
		t.Fatalf("rent rows = %d, want 1", n)
	}
}

func TestBackfillDryRunWritesNothing(t *testing.T) {
	db := ledgerDB(t)
	insertBareSessions(t, db, venueID(t, db, "Beta"), 4)
	pub := &recordingPublisher{}
	d := deps(db)
	d.Events = pub

	res, err := NewBackfillService(d).Run(context.Background(), BackfillOptions{Amount: dec("250"), DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Missing != 4 || res.Created != 0 || res.Verified || !res.DryRun {
		t.Fatalf("result = %+v", res)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items`); n != 0 {
		t.Fatalf("dry run wrote %d line items", n)
	}
	if got := pub.types(); len(got) != 1 || got[0] != queue.TypeBackfillCompleted {
		t.Fatalf("events = %v", got)
	}
}

func TestBackfillWarnsOnDivergence(t *testing.T) {
	db := ledgerDB(t)
	alpha := venueID(t, db, "Alpha")
	insertBareSessions(t, db, alpha, 1)
	// A second rent row on the same session makes the counts disagree.
	testutil.Exec(t, db, `INSERT INTO line_items (session_id, category, description, amount)
		SELECT id, 'rent', 'manual', 1 FROM sessions`)
	testutil.Exec(t, db, `INSERT INTO line_items (session_id, category, description, amount)
		SELECT id, 'rent', 'manual', 1 FROM sessions`)

	var buf bytes.Buffer
	logger := log.New("backfill")
	logger.SetOutput(&buf)
	d := deps(db)
	d.Logger = logger

	res, err := NewBackfillService(d).Run(context.Background(), BackfillOptions{Amount: dec("330")})
	if err != nil {
		t.Fatalf("divergence must not be an error: %v", err)
	}
	if res.Verified || res.Created != 0 || res.Sessions != 1 || res.RentLineItems != 2 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(buf.String(), "verification diverged") || !strings.Contains(buf.String(), `"WARN"`) {
		t.Fatalf("missing warning in log:\n%s", buf.String())
	}
}

func TestBackfillRejectsBadAmount(t *testing.T) {
	svc := NewBackfillService(deps(ledgerDB(t)))
	for _, amount := range []string{"0", "-330", "1.001"} {
		if _, err := svc.Run(context.Background(), BackfillOptions{Amount: dec(amount)}); !errors.Is(err, repository.ErrValidation) {
			t.Fatalf("amount %s: err = %v, want validation", amount, err)
		}
	}
}
