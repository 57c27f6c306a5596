/*
engine.go - Leave request creation and editing

PURPOSE:
  Validates and creates leave requests: computes day counts per leave
  day type, enforces balance sufficiency for paid leave, and triggers
  fire-and-forget notifications.

BALANCE RULE:
  A paid request requires leaveBalance >= totalDays AND leaveBalance != 0.
  A request that fails the rule is never persisted. Unpaid requests are
  always permitted and never debit anything.

ADMIN PATH:
  CreateApprovedRequest creates a request directly in the approved state
  and applies the paid debit synchronously in the same transaction. This
  keeps the state machine's transition table simple (pending ->
  approved|rejected only) instead of threading an admin flag through it.

RACE NOTE:
  The sufficiency check here is check-then-act against the live balance.
  The authoritative guard is the conditional debit at approval time
  (store-level, atomic); a request that slips past this check under
  concurrent approvals still cannot overdraw the balance.

SEE ALSO:
  - days.go: day counting rules
  - approval.go: lifecycle transitions and the approve-time debit
*/
package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine validates and creates leave requests.
type Engine struct {
	Store   TxStore
	Gateway NotificationGateway
	Logger  *slog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// CreateRequestInput carries the client-supplied fields of a request.
// Day counts are always computed server-side from the dates and day
// type; a client-supplied total is ignored.
type CreateRequestInput struct {
	EmployeeID   EmployeeID
	Reason       string
	StartDate    time.Time
	EndDate      time.Time
	LeaveType    LeaveType
	LeaveDayType LeaveDayType
}

// CreateRequest validates the input, checks balance sufficiency for
// paid leave, and persists a new pending request. On success the
// notification gateway is informed asynchronously; a delivery failure
// never rolls back the creation.
func (e *Engine) CreateRequest(ctx context.Context, in CreateRequestInput) (*LeaveRequest, error) {
	req, err := e.buildRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	req.Status = StatusPending

	if err := e.Store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	notifyAsync(e.Logger, "request_created", req, e.gatewayCreated())
	return req, nil
}

// CreateApprovedRequest is the admin-on-behalf path: the request skips
// pending entirely and the paid debit is applied synchronously within
// the same transaction as the insert.
func (e *Engine) CreateApprovedRequest(ctx context.Context, in CreateRequestInput) (*LeaveRequest, error) {
	req, err := e.buildRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	req.Status = StatusApproved

	err = e.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreateRequest(ctx, req); err != nil {
			return err
		}
		if req.Debits() {
			return s.AdjustBalanceIfSufficient(ctx, req.EmployeeID, req.TotalDays)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAsync(e.Logger, "request_created", req, e.gatewayCreated())
	notifyAsync(e.Logger, "status_changed", req, e.gatewayStatus())
	return req, nil
}

// EditPending re-runs day counting and balance sufficiency against the
// current balance and updates the request in place. It does not
// transition state and never touches the balance; the debit happens
// once, at approval.
func (e *Engine) EditPending(ctx context.Context, id RequestID, in CreateRequestInput) (*LeaveRequest, error) {
	req, err := e.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, &InvalidStateTransitionError{RequestID: id, From: req.Status, To: StatusPending}
	}

	if in.EmployeeID == "" {
		in.EmployeeID = req.EmployeeID
	}
	updated, err := e.buildRequest(ctx, in)
	if err != nil {
		return nil, err
	}

	req.Reason = updated.Reason
	req.StartDate = updated.StartDate
	req.EndDate = updated.EndDate
	req.LeaveType = updated.LeaveType
	req.LeaveDayType = updated.LeaveDayType
	req.TotalDays = updated.TotalDays
	req.UpdatedAt = e.now()

	if err := e.Store.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// =============================================================================
// VALIDATION AND CONSTRUCTION
// =============================================================================

// buildRequest validates the input and returns an unsaved request with
// its day count computed. Status is left for the caller to set.
func (e *Engine) buildRequest(ctx context.Context, in CreateRequestInput) (*LeaveRequest, error) {
	if in.EmployeeID == "" {
		return nil, &ValidationError{Field: "employee_id", Message: "required"}
	}
	if !ValidLeaveType(in.LeaveType) {
		return nil, &ValidationError{Field: "leave_type", Message: "must be paid or unpaid"}
	}
	if !ValidLeaveDayType(in.LeaveDayType) {
		return nil, &ValidationError{Field: "leave_day_type", Message: "unknown day type"}
	}
	if in.StartDate.After(in.EndDate) {
		return nil, &ValidationError{Field: "start_date", Message: "start date is after end date"}
	}

	totalDays, endDate := CountDays(in.LeaveDayType, in.StartDate, in.EndDate)

	if in.LeaveType == LeavePaid {
		bal, err := e.Store.GetBalance(ctx, in.EmployeeID)
		if err != nil {
			return nil, err
		}
		// A zero balance fails even when the requested count is zero.
		if bal.LeaveBalance.IsZero() || bal.LeaveBalance.LessThan(totalDays) {
			return nil, &InsufficientBalanceError{
				EmployeeID: in.EmployeeID,
				Available:  bal.LeaveBalance,
				Requested:  totalDays,
			}
		}
	}

	now := e.now()
	return &LeaveRequest{
		ID:           RequestID(uuid.NewString()),
		EmployeeID:   in.EmployeeID,
		Reason:       in.Reason,
		StartDate:    dateOnly(in.StartDate),
		EndDate:      dateOnly(endDate),
		LeaveType:    in.LeaveType,
		LeaveDayType: in.LeaveDayType,
		TotalDays:    totalDays,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) gatewayCreated() func(context.Context, *LeaveRequest) error {
	if e.Gateway == nil {
		return nil
	}
	return e.Gateway.NotifyRequestCreated
}

func (e *Engine) gatewayStatus() func(context.Context, *LeaveRequest) error {
	if e.Gateway == nil {
		return nil
	}
	return e.Gateway.NotifyStatusChanged
}
