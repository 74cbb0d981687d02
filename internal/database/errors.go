package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL SQLSTATE codes, class 23 (integrity constraint violation).
const (
	PgErrNotNullViolation    = "23502"
	PgErrForeignKeyViolation = "23503"
	PgErrUniqueViolation     = "23505"
	PgErrCheckViolation      = "23514"
)

// MySQL server error numbers for constraint failures.
const (
	MySQLErrDupEntry        = 1062
	MySQLErrBadNull         = 1048
	MySQLErrRowIsReferenced = 1451
	MySQLErrNoReferencedRow = 1452
	MySQLErrCheckConstraint = 3819
)

// Violation classifies a constraint failure reported by the database.
type Violation int

const (
	NoViolation Violation = iota
	UniqueViolation
	ForeignKeyViolation
	CheckViolation
	NotNullViolation
)

func (v Violation) String() string {
	switch v {
	case UniqueViolation:
		return "unique"
	case ForeignKeyViolation:
		return "foreign_key"
	case CheckViolation:
		return "check"
	case NotNullViolation:
		return "not_null"
	}
	return "none"
}

// Classify inspects err for a constraint violation from any supported
// driver.  Errors that are not constraint failures yield NoViolation.
func Classify(err error) Violation {
	if err == nil {
		return NoViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgErrUniqueViolation:
			return UniqueViolation
		case PgErrForeignKeyViolation:
			return ForeignKeyViolation
		case PgErrCheckViolation:
			return CheckViolation
		case PgErrNotNullViolation:
			return NotNullViolation
		}
		return NoViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case MySQLErrDupEntry:
			return UniqueViolation
		case MySQLErrRowIsReferenced, MySQLErrNoReferencedRow:
			return ForeignKeyViolation
		case MySQLErrCheckConstraint:
			return CheckViolation
		case MySQLErrBadNull:
			return NotNullViolation
		}
		return NoViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr.Code(), liteErr.Error())
	}
	return NoViolation
}

// classifySQLite prefers extended result codes and falls back to the
// message when only the primary SQLITE_CONSTRAINT code is reported.
func classifySQLite(code int, msg string) Violation {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return UniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ForeignKeyViolation
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return CheckViolation
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return NotNullViolation
	}
	if code&0xff != sqlite3.SQLITE_CONSTRAINT {
		return NoViolation
	}
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return UniqueViolation
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ForeignKeyViolation
	case strings.Contains(msg, "CHECK constraint failed"):
		return CheckViolation
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return NotNullViolation
	}
	return NoViolation
}
