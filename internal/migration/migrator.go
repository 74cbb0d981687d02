// Package migration evolves the ledger schema from sessions without venues
// to sessions that require one.  Every run executes its steps in order over
// a single transaction: either all of them take effect or none do.
//
// The migrator assumes a single runner.  Two concurrent runs against the
// same database are not coordinated.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
	"github.com/owenwalSe7en/The-Bunker-Finances/internal/metrics"
)

// Logger is the subset of gommon's logger the migrator writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Step labels, in execution order.
const (
	StepCreateVenues    = "create venues table"
	StepSeedVenues      = "seed venues"
	StepAddVenueColumn  = "add sessions.venue_id (nullable)"
	StepAssignDefault   = "assign default venue to sessions"
	StepVerifyAssigned  = "verify every session has a venue"
	StepAddForeignKey   = "add sessions.venue_id foreign key"
	StepRequireVenue    = "set sessions.venue_id NOT NULL"
	StepCreateVenueIdx  = "create sessions.venue_id index"
	StepCountSessions   = "count dependent sessions"
	StepDropVenueIdx    = "drop sessions.venue_id index"
	StepDropForeignKey  = "drop sessions.venue_id foreign key"
	StepDropVenueColumn = "drop sessions.venue_id"
	StepDropVenues      = "drop venues table"
)

type schema interface {
	prepare(ctx context.Context, conn *sql.Conn) (restore func(), err error)
	baseline() []string
	createVenues() string
	tableExists(ctx context.Context, q database.Querier, table string) (bool, error)
	columnExists(ctx context.Context, q database.Querier, table, column string) (bool, error)
	addVenueColumn(ctx context.Context, tx *sql.Tx) error
	addVenueForeignKey(ctx context.Context, tx *sql.Tx) error
	requireVenue(ctx context.Context, tx *sql.Tx) error
	dropVenueForeignKey(ctx context.Context, tx *sql.Tx) error
	dropVenueColumn(ctx context.Context, tx *sql.Tx) error
}

type step struct {
	name string
	run  func(ctx context.Context, tx *sql.Tx) error
}

// Migrator runs the venue migration and its reversal.
type Migrator struct {
	db      *sql.DB
	dialect database.Dialect
	schema  schema
	log     Logger
	metrics *metrics.Metrics

	// AfterStep, when set, runs after each step with the open transaction.
	// Returning an error aborts the run exactly like a failing step.
	AfterStep func(ctx context.Context, step string, tx *sql.Tx) error
}

// New returns a Migrator for db.  Dialects without transactional DDL are
// rejected with ErrNonTransactionalDDL.  A nil logger logs through gommon
// with the "migrate" prefix; a nil metrics records nothing.
func New(db *sql.DB, d database.Dialect, logger Logger, m *metrics.Metrics) (*Migrator, error) {
	var s schema
	switch d {
	case database.Postgres:
		s = postgresSchema{}
	case database.SQLite:
		s = sqliteSchema{}
	default:
		if d.Valid() && !d.TransactionalDDL() {
			return nil, fmt.Errorf("%s: %w", d, ErrNonTransactionalDDL)
		}
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
	if logger == nil {
		logger = log.New("migrate")
	}
	return &Migrator{db: db, dialect: d, schema: s, log: logger, metrics: m}, nil
}

// UpResult summarises a successful forward run.
type UpResult struct {
	DefaultVenueID   int64
	SeededVenues     int
	SessionsAssigned int64
}

// Status describes how far the schema has evolved.
type Status struct {
	Baseline    bool
	VenuesTable bool
	VenueColumn bool
	Sessions    int64
	Venues      int64
}

// Baseline creates the pre-venue schema if it does not exist yet.
func (m *Migrator) Baseline(ctx context.Context) error {
	steps := make([]step, 0, 3)
	for i, q := range m.schema.baseline() {
		steps = append(steps, step{
			name: fmt.Sprintf("baseline statement %d", i+1),
			run: func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, q)
				return err
			},
		})
	}
	return m.run(ctx, "baseline", steps)
}

// Up runs the forward migration described by plan.  It is safe to call
// again after a successful run; seed venues are looked up by owner and
// reused.
func (m *Migrator) Up(ctx context.Context, plan Plan) (UpResult, error) {
	var res UpResult
	if err := plan.Validate(); err != nil {
		return res, &FatalError{Step: "validate plan", Err: err}
	}
	defaultOwner := strings.TrimSpace(plan.DefaultOwner)

	steps := []step{
		{StepCreateVenues, func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, m.schema.createVenues())
			return err
		}},
		{StepSeedVenues, func(ctx context.Context, tx *sql.Tx) error {
			for _, seed := range plan.Seeds {
				owner := strings.TrimSpace(seed.Owner)
				id, created, err := m.seedVenue(ctx, tx, owner, seed)
				if err != nil {
					return fmt.Errorf("seed row for %s could not be created: %w", owner, err)
				}
				if id <= 0 {
					return fmt.Errorf("seed row for %s could not be created: no id returned", owner)
				}
				if created {
					res.SeededVenues++
				}
				if owner == defaultOwner {
					res.DefaultVenueID = id
				}
			}
			return nil
		}},
		{StepAddVenueColumn, m.schema.addVenueColumn},
		{StepAssignDefault, func(ctx context.Context, tx *sql.Tx) error {
			r, err := tx.ExecContext(ctx,
				m.dialect.Rebind(`UPDATE sessions SET venue_id = ? WHERE venue_id IS NULL`), res.DefaultVenueID)
			if err != nil {
				return err
			}
			res.SessionsAssigned, err = r.RowsAffected()
			if err == nil {
				m.log.Infof("assigned venue %d to %d session(s)", res.DefaultVenueID, res.SessionsAssigned)
			}
			return err
		}},
		{StepVerifyAssigned, func(ctx context.Context, tx *sql.Tx) error {
			var n int64
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE venue_id IS NULL`).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				return &VerificationError{Check: "sessions without a venue", Count: n}
			}
			return nil
		}},
		// The foreign key goes in before NOT NULL so there is never a
		// moment where the column is required but not yet validated.
		{StepAddForeignKey, m.schema.addVenueForeignKey},
		{StepRequireVenue, m.schema.requireVenue},
		{StepCreateVenueIdx, func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS sessions_venue_id_idx ON sessions (venue_id)`)
			return err
		}},
	}
	if err := m.run(ctx, "up", steps); err != nil {
		return UpResult{}, err
	}
	return res, nil
}

func (m *Migrator) seedVenue(ctx context.Context, tx *sql.Tx, owner string, seed SeedVenue) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, m.dialect.Rebind(`SELECT id FROM venues WHERE owner = ?`), owner).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	id, err = m.dialect.InsertID(ctx, tx, `INSERT INTO venues (owner, nightly_fee) VALUES (?, ?)`, owner, seed.NightlyFee)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Down reverses the forward migration.  It refuses while any session
// exists, returning the count in a *VerificationError, because dropping the
// column would discard every session's venue.
func (m *Migrator) Down(ctx context.Context) (int64, error) {
	var sessions int64
	steps := []step{
		{StepCountSessions, func(ctx context.Context, tx *sql.Tx) error {
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&sessions); err != nil {
				return err
			}
			if sessions > 0 {
				return &VerificationError{Check: "no sessions depend on venues", Count: sessions}
			}
			return nil
		}},
		{StepDropVenueIdx, func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DROP INDEX IF EXISTS sessions_venue_id_idx`)
			return err
		}},
		{StepDropForeignKey, m.schema.dropVenueForeignKey},
		{StepDropVenueColumn, m.schema.dropVenueColumn},
		{StepDropVenues, func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS venues`)
			return err
		}},
	}
	err := m.run(ctx, "down", steps)
	return sessions, err
}

// Status inspects the schema without changing it.
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	var st Status
	var err error
	if st.Baseline, err = m.schema.tableExists(ctx, m.db, "sessions"); err != nil || !st.Baseline {
		return st, err
	}
	if st.VenuesTable, err = m.schema.tableExists(ctx, m.db, "venues"); err != nil {
		return st, err
	}
	if st.VenueColumn, err = m.schema.columnExists(ctx, m.db, "sessions", "venue_id"); err != nil {
		return st, err
	}
	if err = m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions); err != nil {
		return st, err
	}
	if st.VenuesTable {
		err = m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM venues`).Scan(&st.Venues)
	}
	return st, err
}

// run executes steps over one transaction on a dedicated connection.  Any
// step error, hook error or commit error rolls everything back.
func (m *Migrator) run(ctx context.Context, direction string, steps []step) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return &FatalError{Step: "connect", Err: err}
	}
	defer conn.Close()

	restore, err := m.schema.prepare(ctx, conn)
	if err != nil {
		return &FatalError{Step: "prepare connection", Err: err}
	}
	defer restore()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &FatalError{Step: "begin", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				m.log.Errorf("%s: rollback failed: %v", direction, rbErr)
				return
			}
			m.log.Warnf("%s: rolled back, schema unchanged", direction)
		}
	}()

	for i, s := range steps {
		m.log.Infof("%s step %d/%d: %s", direction, i+1, len(steps), s.name)
		err := s.run(ctx, tx)
		if err == nil && m.AfterStep != nil {
			err = m.AfterStep(ctx, s.name, tx)
		}
		if err != nil {
			m.metrics.MigrationStep(direction, s.name, "failed")
			m.log.Errorf("%s step %d/%d (%s) failed: %v", direction, i+1, len(steps), s.name, err)
			return &FatalError{Step: s.name, Err: err}
		}
		m.metrics.MigrationStep(direction, s.name, "ok")
	}
	if err := tx.Commit(); err != nil {
		m.log.Errorf("%s: commit failed: %v", direction, err)
		return &FatalError{Step: "commit", Err: err}
	}
	committed = true
	m.log.Infof("%s: committed %d step(s)", direction, len(steps))
	return nil
}
