/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All business errors in one place. Callers match with errors.Is/errors.As;
  the structured variants carry enough context to render a useful message.

ERROR CATEGORIES:
  1. Validation errors  - malformed submissions, rejected before any mutation
  2. Balance errors     - insufficient balance, ledger corruption
  3. Lookup errors      - missing employees, records, buckets

Store-level failures are not enumerated here; they propagate wrapped with
fmt.Errorf("%w") after the enclosing transaction has rolled back.
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRequest is returned for malformed submissions: unparseable
	// dates, unknown leave type, end before start.
	ErrInvalidRequest = errors.New("invalid leave request")

	// ErrInsufficientBalance is returned when a debit exceeds the total
	// active balance. Detected before any bucket is touched.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverlapConflict is returned when a submission overlaps an active
	// record that is not annual leave. Only annual leave may be replaced.
	ErrOverlapConflict = errors.New("overlap conflict")

	// ErrNotFound is returned when a referenced employee, record or bucket
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLedgerCorruption signals that a debit pass left a remainder even
	// though the pre-check passed. This cannot happen unless bucket state
	// was mutated outside the ledger; the operation is aborted and rolled
	// back, never papered over.
	ErrLedgerCorruption = errors.New("ledger corruption detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID string
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for employee %s: available %s, requested %s",
		e.EmployeeID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OverlapConflictError names the record blocking a submission.
type OverlapConflictError struct {
	LeaveID string
	Type    LeaveType
}

func (e *OverlapConflictError) Error() string {
	return fmt.Sprintf("submission overlaps %s leave %s; only annual leave can be replaced",
		e.Type, e.LeaveID)
}

func (e *OverlapConflictError) Unwrap() error { return ErrOverlapConflict }

// NotFoundError identifies what was missing.
type NotFoundError struct {
	Kind string // "employee", "leave", "bucket"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is caused by invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOverlapConflict)
}

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
