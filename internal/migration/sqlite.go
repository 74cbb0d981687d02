package migration

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
)

// sqliteSchema cannot add a foreign key or a NOT NULL constraint to an
// existing column, so those steps rebuild the sessions table: create the
// new shape, copy rows, drop the old table, rename.  The rebuild needs
// foreign key enforcement off, otherwise dropping sessions would cascade
// into line_items.  The pragma is a no-op inside a transaction, hence
// prepare runs on the dedicated connection before BEGIN.
type sqliteSchema struct{}

const sqliteSessionColumns = `id, date, fee_collected, notes, created_at, updated_at`

func sqliteSessionsDDL(table, venueColumn string) string {
	ddl := `CREATE TABLE ` + table + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL CONSTRAINT sessions_date_key UNIQUE,
		fee_collected NUMERIC(10,2) NOT NULL DEFAULT 0 CONSTRAINT sessions_fee_collected_check CHECK (fee_collected >= 0),
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP`
	if venueColumn != "" {
		ddl += ",\n\t\t" + venueColumn
	}
	return ddl + "\n\t)"
}

const (
	sqliteVenueNullable = `venue_id INTEGER`
	sqliteVenueFK       = `venue_id INTEGER CONSTRAINT sessions_venue_id_fkey REFERENCES venues(id) ON DELETE RESTRICT`
	sqliteVenueRequired = `venue_id INTEGER NOT NULL CONSTRAINT sessions_venue_id_fkey REFERENCES venues(id) ON DELETE RESTRICT`
)

func (sqliteSchema) prepare(ctx context.Context, conn *sql.Conn) (func(), error) {
	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		return nil, err
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), `PRAGMA foreign_keys = ON`); err != nil {
			// Never hand a connection without enforcement back to the pool.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}, nil
}

func (sqliteSchema) baseline() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL CONSTRAINT sessions_date_key UNIQUE,
			fee_collected NUMERIC(10,2) NOT NULL DEFAULT 0 CONSTRAINT sessions_fee_collected_check CHECK (fee_collected >= 0),
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS line_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER REFERENCES sessions(id) ON DELETE CASCADE,
			category TEXT NOT NULL CONSTRAINT line_items_category_check CHECK (category IN ('rent','food','supplies','staff','other')),
			description TEXT NOT NULL DEFAULT '',
			amount NUMERIC(10,2) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS line_items_session_category_idx ON line_items (session_id, category)`,
	}
}

func (sqliteSchema) createVenues() string {
	return `CREATE TABLE IF NOT EXISTS venues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL CONSTRAINT venues_owner_key UNIQUE,
		nightly_fee NUMERIC(10,2) NOT NULL CONSTRAINT venues_nightly_fee_check CHECK (nightly_fee > 0 AND nightly_fee <= 10000),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
}

func (sqliteSchema) tableExists(ctx context.Context, q database.Querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	return n > 0, err
}

func (sqliteSchema) columnExists(ctx context.Context, q database.Querier, table, column string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	return n > 0, err
}

func (s sqliteSchema) addVenueColumn(ctx context.Context, tx *sql.Tx) error {
	ok, err := s.columnExists(ctx, tx, "sessions", "venue_id")
	if err != nil || ok {
		return err
	}
	_, err = tx.ExecContext(ctx, `ALTER TABLE sessions ADD COLUMN `+sqliteVenueNullable)
	return err
}

func (s sqliteSchema) addVenueForeignKey(ctx context.Context, tx *sql.Tx) error {
	ok, err := s.hasVenueForeignKey(ctx, tx)
	if err != nil || ok {
		return err
	}
	if err := s.rebuildSessions(ctx, tx, sqliteVenueFK); err != nil {
		return err
	}
	return s.checkForeignKeys(ctx, tx)
}

func (s sqliteSchema) requireVenue(ctx context.Context, tx *sql.Tx) error {
	var notNull int
	err := tx.QueryRowContext(ctx, `SELECT "notnull" FROM pragma_table_info('sessions') WHERE name = 'venue_id'`).Scan(&notNull)
	if err != nil || notNull == 1 {
		return err
	}
	if err := s.rebuildSessions(ctx, tx, sqliteVenueRequired); err != nil {
		return err
	}
	return s.checkForeignKeys(ctx, tx)
}

func (s sqliteSchema) dropVenueForeignKey(ctx context.Context, tx *sql.Tx) error {
	ok, err := s.hasVenueForeignKey(ctx, tx)
	if err != nil || !ok {
		return err
	}
	return s.rebuildSessions(ctx, tx, sqliteVenueNullable)
}

func (s sqliteSchema) dropVenueColumn(ctx context.Context, tx *sql.Tx) error {
	ok, err := s.columnExists(ctx, tx, "sessions", "venue_id")
	if err != nil || !ok {
		return err
	}
	_, err = tx.ExecContext(ctx, `ALTER TABLE sessions DROP COLUMN venue_id`)
	return err
}

func (sqliteSchema) hasVenueForeignKey(ctx context.Context, tx *sql.Tx) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_foreign_key_list('sessions') WHERE "table" = 'venues' AND "from" = 'venue_id'`).Scan(&n)
	return n > 0, err
}

// rebuildSessions swaps sessions for a copy whose venue_id column is
// declared as venueColumn.  Indexes on sessions are dropped with the old
// table; the venue index is created afterwards by its own step.
func (sqliteSchema) rebuildSessions(ctx context.Context, tx *sql.Tx, venueColumn string) error {
	cols := sqliteSessionColumns + ", venue_id"
	stmts := []string{
		`DROP TABLE IF EXISTS sessions__new`,
		sqliteSessionsDDL("sessions__new", venueColumn),
		`INSERT INTO sessions__new (` + cols + `) SELECT ` + cols + ` FROM sessions`,
		`DROP TABLE sessions`,
		`ALTER TABLE sessions__new RENAME TO sessions`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("rebuild sessions: %w", err)
		}
	}
	return nil
}

// checkForeignKeys fails when any sessions row points at a missing venue.
func (sqliteSchema) checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `PRAGMA foreign_key_check(sessions)`)
	if err != nil {
		return err
	}
	defer rows.Close()
	var n int64
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if n > 0 {
		return &VerificationError{Check: "sessions referencing missing venues", Count: n}
	}
	return nil
}
