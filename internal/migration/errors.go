package migration

import (
	"errors"
	"fmt"
)

// ErrNonTransactionalDDL is returned for dialects whose schema statements
// commit implicitly.  Running the steps there could leave a half-migrated
// schema behind.
var ErrNonTransactionalDDL = errors.New("dialect does not support transactional DDL")

// FatalError aborts a migration run.  Step names the step that failed; the
// enclosing transaction has been rolled back by the time the caller sees it.
type FatalError struct {
	Step string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("migration step %q failed: %v", e.Step, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// VerificationError reports a post-condition that did not hold.  Count is
// the number of offending rows.
type VerificationError struct {
	Check string
	Count int64
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification %q failed: %d offending row(s)", e.Check, e.Count)
}

// IsFatal reports whether err ends a migration run.
func IsFatal(err error) bool {
	var fe *FatalError
	var ve *VerificationError
	return errors.As(err, &fe) || errors.As(err, &ve)
}
