/*
errors.go - Centralized error taxonomy for the leave ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Business-rule failures are returned as structured, typed errors so the
  transport layer can map them to user-facing messages without
  inspecting free text.

ERROR CATEGORIES:
  1. Validation errors  - bad input (date range, missing field); recoverable
  2. Balance errors     - insufficient balance for paid leave; recoverable
  3. Transition errors  - lifecycle violation (approving a rejected
     request); recoverable, no side effects
  4. Not-found errors   - unknown request/employee/entry id
  5. Persistence errors - storage failure; fatal for the current
     operation, no partial state assumed committed

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) { ... }

  var tErr *leave.InvalidStateTransitionError
  if errors.As(err, &tErr) { ... }

SEE ALSO:
  - engine.go, approval.go: producers of these errors
  - api/handlers.go: maps them to HTTP statuses
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
	// ErrValidation is returned for malformed input: an inverted date
	// range, an unknown leave type, a missing required field.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a paid request exceeds the
	// available leave balance. The request is never persisted.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrInvalidStateTransition is returned when a lifecycle operation is
	// attempted on a request that is not in the required state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAccrual is returned when an accrual entry already exists
	// for an employee+month pair. Expected during idempotent job re-runs.
	ErrDuplicateAccrual = errors.New("accrual entry already exists for month")

	// ErrPersistence wraps storage-layer failures. Treated as fatal for
	// the current operation; no partial state is assumed committed.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes an input violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s",
		e.EmployeeID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateTransitionError describes a rejected lifecycle operation.
type InvalidStateTransitionError struct {
	RequestID RequestID
	From      Status
	To        Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot transition %s -> %s", e.RequestID, e.From, e.To)
}

func (e *InvalidStateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// NotFoundError identifies a missing record.
type NotFoundError struct {
	Kind string // "employee", "request", "accrual entry"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a recoverable business-rule failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrDuplicateAccrual)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
