package core

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrStoreUnavailable means the database could not be reached, even after retrying.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrComputationAborted means a forecast run failed and the previous snapshot was kept.
	ErrComputationAborted = errors.New("forecast computation aborted")
	// ErrInvalidFilter means a caller supplied an unusable filter value.
	ErrInvalidFilter = errors.New("invalid filter")
)

// StatementError is returned when a statement submitted through the
// execution logger fails. The failure itself is already logged under LogID.
type StatementError struct {
	LogID int64
	SQL   string
	Err   error
}

func (e *StatementError) Error() string {
	if e.LogID > 0 {
		return fmt.Sprintf("statement failed (log_id=%d): %v", e.LogID, e.Err)
	}
	return fmt.Sprintf("statement failed: %v", e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// ResetIncompleteError is returned when a reset cleared tables but could not
// reload them. Tables cleared before the failure stay empty.
type ResetIncompleteError struct {
	Table string
	File  string
	Err   error
}

func (e *ResetIncompleteError) Error() string {
	return fmt.Sprintf("reset incomplete: loading %s from %s: %v", e.Table, e.File, e.Err)
}

func (e *ResetIncompleteError) Unwrap() error {
	return e.Err
}

// IsStatementError reports whether err wraps a *StatementError.
func IsStatementError(err error) bool {
	var se *StatementError
	return errors.As(err, &se)
}

// IsResetIncomplete reports whether err wraps a *ResetIncompleteError.
func IsResetIncomplete(err error) bool {
	var re *ResetIncompleteError
	return errors.As(err, &re)
}
