package sqlite

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers distinguish them with errors.Is/errors.As
// rather than string matching.
var (
	// ErrStorage wraps failures from the underlying SQLite engine itself
	// (I/O errors, constraint violations that escape our own checks, a
	// connection that has gone away). A StorageError is only produced when
	// beginning a transaction, committing a write transaction or closing
	// the store fails; an error from a statement inside an operation is
	// returned %w-wrapped and does not match ErrStorage.
	ErrStorage = errors.New("storage error")

	// ErrInit wraps failures that occur while opening or preparing a store:
	// a bad DSN, a failed pragma, a lock that is already held by another
	// process, a migration that could not apply.
	ErrInit = errors.New("init error")

	// ErrInvariantViolation wraps a detected breach of one of the data
	// model's invariants (spec.md §3) that the schema's own constraints did
	// not catch, surfaced as a hard failure rather than silently repaired.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrRelease is attached to TempAlias release failures. Release never
	// returns this error to its caller — it is logged only — but it exists
	// so that the logging path can use errors.Is like everywhere else.
	ErrRelease = errors.New("release error")
)

// StorageError wraps a lower-level SQLite failure. Unwraps to ErrStorage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return errors.Join(ErrStorage, e.Err)
}

func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// InitError wraps a failure during Open/Memory.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error {
	return errors.Join(ErrInit, e.Err)
}

func wrapInitErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InitError{Op: op, Err: err}
}

// InvariantViolationError wraps a detected data-model invariant breach.
type InvariantViolationError struct {
	Invariant string
	Err       error
}

func (e *InvariantViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant %s violated: %v", e.Invariant, e.Err)
	}
	return fmt.Sprintf("invariant %s violated", e.Invariant)
}

func (e *InvariantViolationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvariantViolation
	}
	return errors.Join(ErrInvariantViolation, e.Err)
}

// ReleaseError wraps a failure to drop a temp alias. Never returned to the
// caller of Release; Release only logs it at error level through the
// Store's logger.
type ReleaseError struct {
	AliasID int64
	Err     error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release temp alias %d: %v", e.AliasID, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return errors.Join(ErrRelease, e.Err)
}
