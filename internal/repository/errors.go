// Package repository defines the data access layer and the error kinds that
// higher layers use to tell failure scenarios apart.  Every error produced
// for a caller is a *Error whose Kind is one of the sentinels below, so
// handlers can branch with errors.Is and show Error() to the user.
package repository

import "errors"

// ErrValidation is returned when input is malformed.  It is always raised
// before any database access.
var ErrValidation = errors.New("validation failed")

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint rejects a write, such as
// a second session on the same date or a duplicate venue owner.
var ErrConflict = errors.New("conflict")

// ErrReferential is returned when a foreign key rejects a write: the
// referenced venue vanished mid-request or a venue still has sessions.
var ErrReferential = errors.New("referential integrity violation")

// Error carries a kind, a short user-presentable message and the
// underlying cause, if any.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

func Conflict(msg string, cause error) error {
	return &Error{Kind: ErrConflict, Message: msg, Err: cause}
}

func Referential(msg string, cause error) error {
	return &Error{Kind: ErrReferential, Message: msg, Err: cause}
}
