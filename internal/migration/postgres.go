package migration

import (
	"context"
	"database/sql"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
)

// postgresSchema relies on Postgres running DDL inside the transaction and
// on its IF [NOT] EXISTS forms for idempotence.
type postgresSchema struct{}

func (postgresSchema) prepare(context.Context, *sql.Conn) (func(), error) {
	return func() {}, nil
}

func (postgresSchema) baseline() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			date DATE NOT NULL,
			fee_collected NUMERIC(10,2) NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT sessions_date_key UNIQUE (date),
			CONSTRAINT sessions_fee_collected_check CHECK (fee_collected >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS line_items (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT REFERENCES sessions(id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount NUMERIC(10,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT line_items_category_check CHECK (category IN ('rent','food','supplies','staff','other'))
		)`,
		`CREATE INDEX IF NOT EXISTS line_items_session_category_idx ON line_items (session_id, category)`,
	}
}

func (postgresSchema) createVenues() string {
	return `CREATE TABLE IF NOT EXISTS venues (
		id BIGSERIAL PRIMARY KEY,
		owner TEXT NOT NULL,
		nightly_fee NUMERIC(10,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT venues_owner_key UNIQUE (owner),
		CONSTRAINT venues_nightly_fee_check CHECK (nightly_fee > 0 AND nightly_fee <= 10000)
	)`
}

func (postgresSchema) tableExists(ctx context.Context, q database.Querier, table string) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1)`, table).Scan(&ok)
	return ok, err
}

func (postgresSchema) columnExists(ctx context.Context, q database.Querier, table, column string) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2)`, table, column).Scan(&ok)
	return ok, err
}

func (postgresSchema) addVenueColumn(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE sessions ADD COLUMN IF NOT EXISTS venue_id BIGINT`)
	return err
}

func (postgresSchema) addVenueForeignKey(ctx context.Context, tx *sql.Tx) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conname = 'sessions_venue_id_fkey' AND conrelid = 'sessions'::regclass)`).Scan(&exists)
	if err != nil || exists {
		return err
	}
	// Postgres validates every existing row when the constraint is added.
	_, err = tx.ExecContext(ctx, `ALTER TABLE sessions ADD CONSTRAINT sessions_venue_id_fkey
		FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE RESTRICT`)
	return err
}

func (postgresSchema) requireVenue(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE sessions ALTER COLUMN venue_id SET NOT NULL`)
	return err
}

func (postgresSchema) dropVenueForeignKey(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE sessions DROP CONSTRAINT IF EXISTS sessions_venue_id_fkey`)
	return err
}

func (postgresSchema) dropVenueColumn(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `ALTER TABLE sessions DROP COLUMN IF EXISTS venue_id`)
	return err
}
