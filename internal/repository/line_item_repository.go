package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
)

// LineItemRepo provides access to the line_items table.  Line items may
// belong to a session (session_id) and are removed with it.
type LineItemRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewLineItemRepo returns a LineItemRepo bound to db.
func NewLineItemRepo(db *sql.DB, d database.Dialect) *LineItemRepo {
	return &LineItemRepo{db: db, dialect: d}
}

// CreateTx inserts li inside tx and populates its ID and timestamps.
func (r *LineItemRepo) CreateTx(ctx context.Context, tx *sql.Tx, li *model.LineItem) error {
	return r.insert(ctx, tx, li)
}

// Create inserts li outside any caller transaction.
func (r *LineItemRepo) Create(ctx context.Context, li *model.LineItem) error {
	err := r.insert(ctx, r.db, li)
	if err != nil && database.Classify(err) == database.ForeignKeyViolation {
		return Referential("session no longer exists", err)
	}
	return err
}

func (r *LineItemRepo) insert(ctx context.Context, q database.Querier, li *model.LineItem) error {
	id, err := r.dialect.InsertID(ctx, q,
		`INSERT INTO line_items (session_id, category, description, amount) VALUES (?, ?, ?, ?)`,
		li.SessionID, string(li.Category), li.Description, li.Amount)
	if err != nil {
		return err
	}
	got, err := r.get(ctx, q, id)
	if err != nil {
		return err
	}
	*li = *got
	return nil
}

// GetByID returns the line item or a NotFound error.
func (r *LineItemRepo) GetByID(ctx context.Context, id int64) (*model.LineItem, error) {
	return r.get(ctx, r.db, id)
}

func (r *LineItemRepo) get(ctx context.Context, q database.Querier, id int64) (*model.LineItem, error) {
	row := q.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+lineItemColumns+` FROM line_items WHERE id = ?`), id)
	li, err := scanLineItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("line item not found")
	}
	if err != nil {
		return nil, err
	}
	return &li, nil
}

// ListBySession returns the line items of one session in insertion order.
func (r *LineItemRepo) ListBySession(ctx context.Context, sessionID int64) ([]model.LineItem, error) {
	rows, err := r.db.QueryContext(ctx,
		r.dialect.Rebind(`SELECT `+lineItemColumns+` FROM line_items WHERE session_id = ? ORDER BY id`), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// Delete removes a line item.
func (r *LineItemRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM line_items WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireRow(res, "line item not found")
}

// SessionsMissingRent returns the ids of sessions that have no rent line
// item, in ascending order.
func (r *LineItemRepo) SessionsMissingRent(ctx context.Context) ([]int64, error) {
	const q = `SELECT s.id FROM sessions s
		LEFT JOIN line_items li ON li.session_id = s.id AND li.category = 'rent'
		WHERE li.id IS NULL
		ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertRentIfMissingTx adds a rent line item for sessionID unless one
// already exists.  It reports whether a row was written.  The NOT EXISTS
// guard keeps concurrent creators and backfill runs from producing a
// second rent row.
func (r *LineItemRepo) InsertRentIfMissingTx(ctx context.Context, tx *sql.Tx, sessionID int64, amount decimal.Decimal, description string) (bool, error) {
	const q = `INSERT INTO line_items (session_id, category, description, amount)
		SELECT s.id, 'rent', ?, ? FROM sessions s
		WHERE s.id = ? AND NOT EXISTS (
			SELECT 1 FROM line_items li WHERE li.session_id = s.id AND li.category = 'rent')`
	res, err := tx.ExecContext(ctx, r.dialect.Rebind(q), description, amount, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountRent returns the number of rent line items attached to a session.
func (r *LineItemRepo) CountRent(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM line_items WHERE category = 'rent' AND session_id IS NOT NULL`).Scan(&n)
	return n, err
}
