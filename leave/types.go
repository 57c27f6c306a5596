/*
Package leave implements the leave accrual and balance ledger.

PURPOSE:
  This package contains the core domain types and operations for paid
  leave: tracking how many days each employee has earned, validating and
  creating leave requests against the live balance, transitioning
  requests through their lifecycle, and re-deriving balances via the
  monthly accrual and annual carry-forward jobs.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: balance-bearing entity (only the fields the ledger owns)
  - LeaveRequest: a dated span of requested leave with a computed day count
  - AccrualEntry: an immutable record of a monthly balance grant
  - Balance: the live leave balance plus the annual carry-forward value

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere; half-day granularity must be exact
  2. Type Safety: distinct ID types prevent mixing employees and requests
  3. Single mutation funnel: every balance change goes through BalanceStore
  4. Exactly-once effects: a request debits the balance at most once, at the
     moment it first becomes approved

SEE ALSO:
  - errors.go: error taxonomy
  - engine.go: request creation and editing
  - approval.go: lifecycle transitions and balance effects
  - accrual.go / carryforward.go: scheduled jobs
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string
type EntryID string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// LeaveType distinguishes leave that debits the balance from leave that
// is merely recorded.
type LeaveType string

const (
	LeavePaid   LeaveType = "paid"
	LeaveUnpaid LeaveType = "unpaid"
)

// LeaveDayType classifies how a request spans its dates.
type LeaveDayType string

const (
	DaySingle     LeaveDayType = "single"
	DayMultiple   LeaveDayType = "multiple"
	DayFirstHalf  LeaveDayType = "first_half"
	DaySecondHalf LeaveDayType = "second_half"
)

// Status is the request lifecycle state. Pending is the only non-terminal
// state; approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// ValidLeaveType reports whether t is a known leave type.
func ValidLeaveType(t LeaveType) bool { return t == LeavePaid || t == LeaveUnpaid }

// ValidLeaveDayType reports whether d is a known day type.
func ValidLeaveDayType(d LeaveDayType) bool {
	switch d {
	case DaySingle, DayMultiple, DayFirstHalf, DaySecondHalf:
		return true
	}
	return false
}

// =============================================================================
// EMPLOYEE - Balance-bearing entity
// =============================================================================

// Employee carries the subset of the employee record owned by the ledger.
// Everything else (department, contact details, photos) belongs to the
// employee-management subsystem.
type Employee struct {
	ID            EmployeeID
	Name          string
	Email         string
	DateOfJoining time.Time
	Active        bool
	LeaveBalance  decimal.Decimal
	CarryForward  decimal.Decimal
	CreatedAt     time.Time
}

// Balance is the pair of numeric fields the ledger reads and writes.
// LeaveBalance is a cached projection of accruals, carry-forward, and
// approved paid debits; every mutation path must keep it consistent.
type Balance struct {
	LeaveBalance decimal.Decimal
	CarryForward decimal.Decimal
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is a dated span of requested leave. After creation it is
// mutated only through the approval state machine (or an in-place edit
// while still pending). Once terminal it is never mutated; deletion is
// permitted only while pending.
type LeaveRequest struct {
	ID           RequestID
	EmployeeID   EmployeeID
	Reason       string
	StartDate    time.Time
	EndDate      time.Time
	LeaveType    LeaveType
	LeaveDayType LeaveDayType
	TotalDays    decimal.Decimal
	Status       Status

	// RejectionReason is set only when Status is rejected.
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Debits reports whether approving this request debits the leave balance.
// Unpaid day counts are informational only.
func (r *LeaveRequest) Debits() bool { return r.LeaveType == LeavePaid }

// =============================================================================
// ACCRUAL ENTRY - Immutable monthly grant record
// =============================================================================

// AccrualEntry records a single monthly grant. One entry exists per
// employee per month; it is immutable once created except through an
// explicit administrative override that also adjusts the live balance
// by the delta.
type AccrualEntry struct {
	ID         EntryID
	EmployeeID EmployeeID
	Month      time.Time // first day of the month, UTC
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// MonthOf normalizes t to the first day of its month at midnight UTC.
// Accrual entries are keyed on this value.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DEFAULTS
// =============================================================================

var (
	// DefaultMonthlyGrant is the fixed monthly accrual amount.
	DefaultMonthlyGrant = decimal.NewFromFloat(1.5)

	// DefaultCarryForwardCap bounds the annual carry-forward value.
	DefaultCarryForwardCap = decimal.NewFromInt(5)

	// BootstrapCutoffDay is the last day of the month on which a new hire
	// still receives the full monthly grant at creation time.
	BootstrapCutoffDay = 15
)
