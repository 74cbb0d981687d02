package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/queue"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/repository"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/testutil"
)

func TestCreateSessionWritesRentAndRejectsDuplicateDate(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	svc := NewSessionService(deps(db))
	alpha := venueID(t, db, "Alpha")

	session, rent, err := svc.CreateSession(ctx, CreateSessionInput{
		Date: "2026-02-05", FeeCollected: dec("500"), VenueID: alpha, Notes: " first night ",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID <= 0 || session.VenueID != alpha || session.Notes != "first night" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Date.String() != "2026-02-05" {
		t.Fatalf("date = %s", session.Date)
	}
	if rent.Category != model.CategoryRent || !rent.Amount.Equal(dec("330.00")) {
		t.Fatalf("unexpected rent %+v", rent)
	}
	if rent.SessionID == nil || *rent.SessionID != session.ID {
		t.Fatalf("rent not attached to session %d", session.ID)
	}
	if rent.Description != "Rent: Alpha" {
		t.Fatalf("description = %q", rent.Description)
	}

	_, _, err = svc.CreateSession(ctx, CreateSessionInput{
		Date: "2026-02-05", FeeCollected: dec("10"), VenueID: venueID(t, db, "Beta"),
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if err.Error() != "a session already exists for this date" {
		t.Fatalf("message = %q", err.Error())
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM sessions WHERE date = '2026-02-05'`); n != 1 {
		t.Fatalf("sessions on date = %d, want 1", n)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items`); n != 1 {
		t.Fatalf("line items = %d, want 1", n)
	}
}

func TestCreateSessionValidatesBeforeTouchingTheDatabase(t *testing.T) {
	db := testutil.OpenSQLite(t)
	db.Close() // any database access now fails with a non-validation error
	svc := NewSessionService(deps(db))

	cases := []struct {
		name string
		in   CreateSessionInput
	}{
		{"malformed date", CreateSessionInput{Date: "05/02/2026", VenueID: 1}},
		{"impossible date", CreateSessionInput{Date: "2026-02-30", VenueID: 1}},
		{"negative fee", CreateSessionInput{Date: "2026-02-05", FeeCollected: dec("-1"), VenueID: 1}},
		{"sub-cent fee", CreateSessionInput{Date: "2026-02-05", FeeCollected: dec("1.005"), VenueID: 1}},
		{"missing venue id", CreateSessionInput{Date: "2026-02-05"}},
		{"negative venue id", CreateSessionInput{Date: "2026-02-05", VenueID: -3}},
		{"long notes", CreateSessionInput{Date: "2026-02-05", VenueID: 1, Notes: strings.Repeat("x", maxNotesLength+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.CreateSession(context.Background(), tc.in)
			if !errors.Is(err, repository.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestCreateSessionUnknownVenue(t *testing.T) {
	db := ledgerDB(t)
	svc := NewSessionService(deps(db))
	_, _, err := svc.CreateSession(context.Background(), CreateSessionInput{Date: "2026-02-05", VenueID: 9999})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM sessions`); n != 0 {
		t.Fatalf("sessions = %d, want 0", n)
	}
}

func TestCreateSessionVenueDeletedAfterPrefetch(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	testutil.Exec(t, db, `INSERT INTO venues (owner, nightly_fee) VALUES ('Gamma', 120)`)
	gamma := venueID(t, db, "Gamma")

	svc := NewSessionService(deps(db))
	svc.afterPrefetch = func(ctx context.Context, v *model.Venue) {
		testutil.Exec(t, db, `DELETE FROM venues WHERE id = ?`, v.ID)
	}
	_, _, err := svc.CreateSession(ctx, CreateSessionInput{Date: "2026-03-01", VenueID: gamma})
	if !errors.Is(err, repository.ErrReferential) {
		t.Fatalf("err = %v, want referential error", err)
	}
	if err.Error() != "selected venue no longer exists" {
		t.Fatalf("message = %q", err.Error())
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM sessions`); n != 0 {
		t.Fatalf("sessions = %d, want 0", n)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items`); n != 0 {
		t.Fatalf("line items = %d, want 0", n)
	}
}

func TestCreateSessionIsAtomic(t *testing.T) {
	db := ledgerDB(t)
	testutil.Exec(t, db, `CREATE TRIGGER refuse_rent BEFORE INSERT ON line_items
		BEGIN SELECT RAISE(ABORT, 'rent insert refused'); END`)
	svc := NewSessionService(deps(db))

	_, _, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Date: "2026-04-01", VenueID: venueID(t, db, "Alpha"),
	})
	if err == nil {
		t.Fatal("expected the rent insert to fail")
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM sessions`); n != 0 {
		t.Fatalf("session persisted without its rent line item (%d rows)", n)
	}
}

func TestConcurrentCreateOnSameDate(t *testing.T) {
	db := ledgerDB(t)
	svc := NewSessionService(deps(db))
	alpha := venueID(t, db, "Alpha")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
		other     []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.CreateSession(context.Background(), CreateSessionInput{
				Date: "2026-05-01", FeeCollected: dec(fmt.Sprint(i)), VenueID: alpha,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()
	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if ok != 1 || conflicts != callers-1 {
		t.Fatalf("ok=%d conflicts=%d, want 1 and %d", ok, conflicts, callers-1)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items WHERE category = 'rent'`); n != 1 {
		t.Fatalf("rent line items = %d, want 1", n)
	}
}

func TestCreateSessionPublishesEvent(t *testing.T) {
	db := ledgerDB(t)
	pub := &recordingPublisher{}
	d := deps(db)
	d.Events = pub
	svc := NewSessionService(d)

	session, _, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Date: "2026-06-01", VenueID: venueID(t, db, "Beta"),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if got := pub.types(); len(got) != 1 || got[0] != queue.TypeSessionCreated {
		t.Fatalf("events = %v", got)
	}

	// A broker failure never fails a committed creation.
	pub.err = errors.New("broker down")
	if _, _, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Date: "2026-06-02", VenueID: session.VenueID,
	}); err != nil {
		t.Fatalf("CreateSession with failing publisher: %v", err)
	}
}

func TestSessionLineItems(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	svc := NewSessionService(deps(db))
	session, _, err := svc.CreateSession(ctx, CreateSessionInput{Date: "2026-07-01", VenueID: venueID(t, db, "Alpha")})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := svc.AddLineItem(ctx, session.ID, AddLineItemInput{
		Category: model.CategoryRent, Description: "second rent", Amount: dec("10"),
	}); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("rent via AddLineItem: err = %v, want validation", err)
	}
	if _, err := svc.AddLineItem(ctx, session.ID, AddLineItemInput{
		Category: "bribes", Description: "x", Amount: dec("10"),
	}); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("unknown category: err = %v, want validation", err)
	}
	if _, err := svc.AddLineItem(ctx, 9999, AddLineItemInput{
		Category: model.CategoryFood, Description: "pizza", Amount: dec("42.50"),
	}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing session: err = %v, want not found", err)
	}
	food, err := svc.AddLineItem(ctx, session.ID, AddLineItemInput{
		Category: model.CategoryFood, Description: "pizza", Amount: dec("42.50"),
	})
	if err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	detail, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(detail.LineItems) != 2 || detail.LineItems[0].Category != model.CategoryRent {
		t.Fatalf("line items = %+v", detail.LineItems)
	}

	if err := svc.DeleteLineItem(ctx, food.ID); err != nil {
		t.Fatalf("DeleteLineItem: %v", err)
	}
	if err := svc.DeleteLineItem(ctx, food.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second delete: err = %v, want not found", err)
	}
}

func TestUpdateAndDeleteSession(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	svc := NewSessionService(deps(db))
	session, rent, err := svc.CreateSession(ctx, CreateSessionInput{Date: "2026-08-01", VenueID: venueID(t, db, "Alpha")})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	updated, err := svc.UpdateSession(ctx, session.ID, UpdateSessionInput{FeeCollected: dec("725.25"), Notes: "busy"})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if !updated.FeeCollected.Equal(dec("725.25")) || updated.Notes != "busy" || updated.VenueID != session.VenueID {
		t.Fatalf("unexpected update %+v", updated)
	}
	if _, err := svc.UpdateSession(ctx, session.ID, UpdateSessionInput{FeeCollected: dec("-5")}); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("negative fee: err = %v, want validation", err)
	}

	if err := svc.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if n := testutil.Count(t, db, `SELECT COUNT(*) FROM line_items WHERE id = ?`, rent.ID); n != 0 {
		t.Fatal("rent line item survived its session")
	}
	if _, err := svc.GetSession(ctx, session.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetSession after delete: err = %v, want not found", err)
	}
}

func TestListSessionsFilters(t *testing.T) {
	ctx := context.Background()
	db := ledgerDB(t)
	svc := NewSessionService(deps(db))
	alpha, beta := venueID(t, db, "Alpha"), venueID(t, db, "Beta")
	for i, v := range []int64{alpha, beta, alpha} {
		date := fmt.Sprintf("2026-09-%02d", i+1)
		if _, _, err := svc.CreateSession(ctx, CreateSessionInput{Date: date, VenueID: v}); err != nil {
			t.Fatalf("CreateSession %s: %v", date, err)
		}
	}

	all, err := svc.ListSessions(ctx, repository.SessionFilter{})
	if err != nil || len(all) != 3 || all[0].Date.String() != "2026-09-03" {
		t.Fatalf("ListSessions = %+v, %v", all, err)
	}
	atAlpha, err := svc.ListSessions(ctx, repository.SessionFilter{VenueID: alpha})
	if err != nil || len(atAlpha) != 2 {
		t.Fatalf("alpha sessions = %d, %v", len(atAlpha), err)
	}
	ranged, err := svc.ListSessions(ctx, repository.SessionFilter{
		From: model.MustDate("2026-09-02"), To: model.MustDate("2026-09-03"), Limit: 1,
	})
	if err != nil || len(ranged) != 1 || ranged[0].Date.String() != "2026-09-03" {
		t.Fatalf("ranged = %+v, %v", ranged, err)
	}
}
