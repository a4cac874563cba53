/*
Package engine defines the shared error taxonomy for the time accounting engine.

PURPOSE:
  All engine components (tracking, reconcile, leavegrant) report failures
  using the four kinds defined here. The API layer maps them to HTTP
  statuses; nothing in the engine retries internally.

ERROR KINDS:
  ValidationError   user-correctable input problem (overlap, bad interval,
                    empty title, past/future date violations) -> 400
  ConflictError     "already in this state" transitions (timer already
                    running, month already saved, setting already enabled) -> 409
  NotFoundError     operating on a missing entry/setting/record -> 404
  InvalidArgument   programmer error (unknown frequency); logged, never
                    surfaced verbatim to end users -> 500

USAGE:
  if engine.IsConflict(err) { ... }

  var nf *engine.NotFoundError
  if errors.As(err, &nf) { ... }

SEE ALSO:
  - api/handlers.go: status mapping
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all user-correctable input errors.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is the root of all "already in this state" errors.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is the root of all missing-record errors.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is the root of programmer errors.
	ErrInvalidArgument = errors.New("invalid argument")
)

// =============================================================================
// STRUCTURED ERRORS - Carry a user-facing message
// =============================================================================

// ValidationError carries a message safe to surface verbatim to the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError signals a state transition that has already happened.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }
func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError identifies the missing record by kind and id.
type NotFoundError struct {
	Kind string // e.g. "entry", "setting", "reconciliation"
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidArgumentError is a programmer error, not a user-facing one.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return e.Msg }
func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func InvalidArgumentf(format string, args ...any) error {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

func IsValidation(err error) bool      { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsClientError returns true if the error is due to invalid client input
// and should not be logged as a server failure.
func IsClientError(err error) bool {
	return IsValidation(err) || IsConflict(err) || IsNotFound(err)
}
