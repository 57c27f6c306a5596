/*
store.go - Persistence interfaces for the leave ledger

PURPOSE:
  Defines the contract between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  BalanceStore:  atomic balance reads and adjustments
  EmployeeStore: employee records (the subset the ledger needs)
  RequestStore:  leave request persistence and lifecycle writes
  AccrualStore:  monthly accrual entries with employee+month uniqueness
  Store:         composite of the above
  TxStore:       Store plus transactional execution

CONCURRENCY CONTRACT:
  AdjustBalance and AdjustBalanceIfSufficient are atomic
  read-modify-write operations scoped to one employee (a single
  conditional UPDATE expression in SQL). Two concurrent debits against
  the same employee must both be reflected; no lost updates. Engine code
  never does read-then-write on balance fields.

ATOMIC UNITS:
  Approving a paid request pairs a status flip with a balance debit.
  TxStore.WithTx makes the pair all-or-nothing: if either write fails,
  both are rolled back and the debit is never applied.

IMPLEMENTATIONS:
  - leave/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go: production SQLite

SEE ALSO:
  - approval.go: uses WithTx for the approve debit
  - accrual.go: uses WithTx for the per-employee grant unit
*/
package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE STORE
// =============================================================================

// BalanceStore is the single mutation funnel for the two numeric fields
// the ledger owns. Normal paths never drive a balance negative because
// debits go through the conditional adjustment; only a direct
// administrative adjustment may do so.
type BalanceStore interface {
	// GetBalance returns the live balance pair for an employee.
	GetBalance(ctx context.Context, id EmployeeID) (Balance, error)

	// AdjustBalance applies delta to the leave balance as a single atomic
	// read-modify-write. Used by grants and administrative overrides.
	AdjustBalance(ctx context.Context, id EmployeeID, delta decimal.Decimal) error

	// AdjustBalanceIfSufficient decrements the leave balance by debit only
	// if the result stays >= 0. A failed guard returns
	// *InsufficientBalanceError and leaves the balance unchanged.
	AdjustBalanceIfSufficient(ctx context.Context, id EmployeeID, debit decimal.Decimal) error

	// SetCarryForward overwrites the carry-forward value. Clamping to the
	// cap is the caller's responsibility (the annual job).
	SetCarryForward(ctx context.Context, id EmployeeID, value decimal.Decimal) error

	// ResetBalance overwrites the leave balance wholesale. Used only by
	// the annual carry-forward job; every other path adjusts by delta.
	ResetBalance(ctx context.Context, id EmployeeID, value decimal.Decimal) error
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

type EmployeeStore interface {
	CreateEmployee(ctx context.Context, e *Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	// ListActiveEmployees returns every employee the scheduled jobs must
	// visit, in a stable order.
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestFilter narrows request listings. Zero values mean "no filter".
type RequestFilter struct {
	EmployeeID EmployeeID
	Status     Status
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r *LeaveRequest) error
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]LeaveRequest, error)

	// UpdateRequest rewrites the mutable fields of a pending request
	// (dates, day type, reason, total days). It does not change status.
	UpdateRequest(ctx context.Context, r *LeaveRequest) error

	// TransitionRequest atomically moves a request from one status to
	// another, recording rejectionReason when the target is rejected.
	// Returns false (and writes nothing) if the request was not in the
	// from status; this is the exactly-once guard for approvals.
	TransitionRequest(ctx context.Context, id RequestID, from, to Status, rejectionReason string) (bool, error)

	// DeleteRequest removes a request only while it is pending. Returns
	// false if the request exists but is no longer pending.
	DeleteRequest(ctx context.Context, id RequestID) (bool, error)

	// SumApprovedPaidDays sums TotalDays over approved paid requests whose
	// start date falls within [from, to). Used by the annual job.
	SumApprovedPaidDays(ctx context.Context, id EmployeeID, from, to time.Time) (decimal.Decimal, error)
}

// =============================================================================
// ACCRUAL STORE
// =============================================================================

type AccrualStore interface {
	// CreateEntry inserts an accrual entry. Returns ErrDuplicateAccrual if
	// an entry already exists for the employee+month pair; this is the
	// idempotency guard for the monthly job.
	CreateEntry(ctx context.Context, e *AccrualEntry) error

	GetEntry(ctx context.Context, id EntryID) (*AccrualEntry, error)
	ListEntries(ctx context.Context, employeeID EmployeeID, month time.Time) ([]AccrualEntry, error)

	// UpdateEntryAmount rewrites an entry's amount. Only the
	// administrative override path calls this.
	UpdateEntryAmount(ctx context.Context, id EntryID, amount decimal.Decimal) error

	// SumEntries sums entry amounts for an employee over months in
	// [from, to). Used by the annual job.
	SumEntries(ctx context.Context, id EmployeeID, from, to time.Time) (decimal.Decimal, error)
}

// =============================================================================
// COMPOSITE STORES
// =============================================================================

// Store is everything the domain operations need from persistence.
type Store interface {
	BalanceStore
	EmployeeStore
	RequestStore
	AccrualStore
}

// TxStore wraps Store with transaction support. Use it when two writes
// must land together (status flip + debit, entry + grant).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error,
	// every write made through the passed Store is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
