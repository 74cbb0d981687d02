package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/model"
)

// VenueRepo provides CRUD operations on the venues table.  Owner names are
// unique and the nightly fee is bounded by a CHECK constraint, so writes
// that slip past service validation still come back as typed errors.
type VenueRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewVenueRepo returns a VenueRepo bound to db.
func NewVenueRepo(db *sql.DB, d database.Dialect) *VenueRepo {
	return &VenueRepo{db: db, dialect: d}
}

// Create inserts v and fills in its ID and CreatedAt.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	id, err := r.dialect.InsertID(ctx, r.db,
		`INSERT INTO venues (owner, nightly_fee) VALUES (?, ?)`, v.Owner, v.NightlyFee)
	if err != nil {
		return translateVenueWrite(err)
	}
	got, err := r.get(ctx, r.db, id)
	if err != nil {
		return err
	}
	*v = *got
	return nil
}

// GetByID returns the venue or a NotFound error.
func (r *VenueRepo) GetByID(ctx context.Context, id int64) (*model.Venue, error) {
	return r.get(ctx, r.db, id)
}

// GetByIDTx is GetByID inside an open transaction.
func (r *VenueRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Venue, error) {
	return r.get(ctx, tx, id)
}

func (r *VenueRepo) get(ctx context.Context, q database.Querier, id int64) (*model.Venue, error) {
	row := q.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+venueColumns+` FROM venues WHERE id = ?`), id)
	v, err := scanVenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("venue not found")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns all venues ordered by owner.
func (r *VenueRepo) List(ctx context.Context) ([]model.Venue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VenueChanges lists the columns Update writes.  Nil fields are left as
// they are.
type VenueChanges struct {
	Owner      *string
	NightlyFee *decimal.Decimal
}

// Update applies c with a single statement and returns the row as written,
// read back inside the same transaction.  A rejected change leaves every
// column untouched.  Line items already written keep the amount they were
// created with.
func (r *VenueRepo) Update(ctx context.Context, id int64, c VenueChanges) (*model.Venue, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE venues SET owner = COALESCE(?, owner), nightly_fee = COALESCE(?, nightly_fee) WHERE id = ?`),
		c.Owner, c.NightlyFee, id)
	if err != nil {
		return nil, translateVenueWrite(err)
	}
	if err := requireRow(res, "venue not found"); err != nil {
		return nil, err
	}
	v, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, translateVenueWrite(err)
	}
	committed = true
	return v, nil
}

// Delete removes a venue.  Sessions reference venues with ON DELETE
// RESTRICT, so a venue in use yields a Referential error.
func (r *VenueRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM venues WHERE id = ?`), id)
	if err != nil {
		if database.Classify(err) == database.ForeignKeyViolation {
			return Referential("venue is still referenced by sessions", err)
		}
		return err
	}
	return requireRow(res, "venue not found")
}

func translateVenueWrite(err error) error {
	switch database.Classify(err) {
	case database.UniqueViolation:
		return Conflict("a venue with this owner already exists", err)
	case database.CheckViolation:
		return &Error{Kind: ErrValidation, Message: "nightly fee must be greater than 0 and at most 10000", Err: err}
	}
	return err
}

// requireRow maps a zero-row write to NotFound.
func requireRow(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return NotFound(msg)
	}
	return nil
}
