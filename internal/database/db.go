package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open connects using the driver registered for d and verifies the connection.
func Open(d Dialect, dsn string) (*sql.DB, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("unsupported database dialect %q", d)
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s: empty dsn", d)
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// MySQLDSN builds a go-sql-driver DSN.
// parseTime=true -> DATE/DATETIME -> time.Time | loc=UTC keeps times consistent
// clientFoundRows=true makes RowsAffected count matched rows, so an update
// that changes nothing is not mistaken for a missing row.
func MySQLDSN(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, host, port, name)
}

// PostgresDSN builds a postgres:// URL understood by pgx.
func PostgresDSN(user, pass, host, port, name string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	if pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// SQLiteDSN returns a modernc DSN for the database file at path with foreign
// keys enforced and a busy timeout so concurrent writers queue instead of
// failing with SQLITE_BUSY.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// ErrSchemaNotReady means the ledger tables, or the sessions.venue_id
// column, are missing.  On Postgres and SQLite `migrate baseline` and
// `migrate up` create them; MySQL schemas are provisioned out of band.
var ErrSchemaNotReady = errors.New("ledger schema is not migrated")

// CheckSchema verifies that every table and column the API reads exists.
// Each query selects no rows, so the check is cheap on any dialect.
func CheckSchema(ctx context.Context, db *sql.DB) error {
	for _, q := range []string{
		`SELECT id, owner, nightly_fee FROM venues WHERE 1 = 0`,
		`SELECT id, date, fee_collected, venue_id, notes FROM sessions WHERE 1 = 0`,
		`SELECT id, session_id, category, description, amount FROM line_items WHERE 1 = 0`,
	} {
		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSchemaNotReady, err)
		}
		_ = rows.Close()
	}
	return nil
}
