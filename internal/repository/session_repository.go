package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
)

// SessionRepo provides access to the sessions table.  Dates are unique
// across all sessions and venue_id references venues with ON DELETE
// RESTRICT once the venue migration has run.
type SessionRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSessionRepo returns a SessionRepo bound to db.
func NewSessionRepo(db *sql.DB, d database.Dialect) *SessionRepo {
	return &SessionRepo{db: db, dialect: d}
}

// SessionFilter narrows List.  Zero values mean "no restriction".
type SessionFilter struct {
	VenueID int64
	From    model.Date
	To      model.Date
	Limit   int
}

// CreateTx inserts s inside tx and populates its ID and timestamps.  Raw
// driver errors are returned untouched; the caller decides how a unique or
// foreign key violation should read.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	id, err := r.dialect.InsertID(ctx, tx,
		`INSERT INTO sessions (date, fee_collected, venue_id, notes) VALUES (?, ?, ?, ?)`,
		s.Date, s.FeeCollected, s.VenueID, s.Notes)
	if err != nil {
		return err
	}
	got, err := r.get(ctx, tx, id)
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

// GetByID returns the session or a NotFound error.
func (r *SessionRepo) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	return r.get(ctx, r.db, id)
}

func (r *SessionRepo) get(ctx context.Context, q database.Querier, id int64) (*model.Session, error) {
	row := q.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns sessions newest first.
func (r *SessionRepo) List(ctx context.Context, f SessionFilter) ([]model.Session, error) {
	var (
		where []string
		args  []any
	)
	if f.VenueID > 0 {
		where = append(where, "venue_id = ?")
		args = append(args, f.VenueID)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To)
	}
	q := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields of a session.  The date and venue are
// fixed at creation.
func (r *SessionRepo) Update(ctx context.Context, id int64, fee decimal.Decimal, notes string) error {
	res, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE sessions SET fee_collected = ?, notes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		fee, notes, id)
	if err != nil {
		if database.Classify(err) == database.CheckViolation {
			return &Error{Kind: ErrValidation, Message: "fee collected must not be negative", Err: err}
		}
		return err
	}
	return requireRow(res, "session not found")
}

// Delete removes a session; its line items go with it via ON DELETE CASCADE.
func (r *SessionRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireRow(res, "session not found")
}

// Count returns the number of sessions.
func (r *SessionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}
