/*
approval.go - Request lifecycle state machine

PURPOSE:
  Transitions a leave request through its lifecycle and applies the
  corresponding balance debit exactly once.

TRANSITION TABLE:
  pending -> approved   (debit for paid leave, applied here and only here)
  pending -> rejected   (requires a non-empty reason, no balance effect)
  pending -> deleted    (row removed, no balance effect)

  No transition leaves a terminal state. An attempt is rejected with
  InvalidStateTransitionError and has no side effects.

EXACTLY-ONCE DEBIT:
  Approve runs inside one store transaction:
    1. Compare-and-set the status pending -> approved. A concurrent
       approval loses this race and gets InvalidStateTransitionError.
    2. Conditionally debit the balance (guard: result >= 0). A failed
       guard rolls back the status flip and surfaces
       InsufficientBalanceError at approval time.
  Two near-simultaneous approvals for the same employee therefore
  serialize through the store's atomic adjustment, never through
  application-level locking.

SEE ALSO:
  - engine.go: creation-time validation and the admin bypass path
  - store.go: TransitionRequest and AdjustBalanceIfSufficient contracts
*/
package leave

import (
	"context"
	"log/slog"
)

// =============================================================================
// APPROVER
// =============================================================================

// Approver drives the request lifecycle.
type Approver struct {
	Store   TxStore
	Gateway NotificationGateway
	Logger  *slog.Logger
}

// Approve moves a pending request to approved and, for paid leave,
// debits the employee's balance by the request's day count. The status
// write and the debit are one atomic unit.
func (a *Approver) Approve(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	req, err := a.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, &InvalidStateTransitionError{RequestID: id, From: req.Status, To: StatusApproved}
	}

	err = a.Store.WithTx(ctx, func(s Store) error {
		moved, err := s.TransitionRequest(ctx, id, StatusPending, StatusApproved, "")
		if err != nil {
			return err
		}
		if !moved {
			return &InvalidStateTransitionError{RequestID: id, From: StatusApproved, To: StatusApproved}
		}
		if req.Debits() {
			return s.AdjustBalanceIfSufficient(ctx, req.EmployeeID, req.TotalDays)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	req.Status = StatusApproved
	notifyAsync(a.Logger, "status_changed", req, a.gatewayStatus())
	return req, nil
}

// Reject moves a pending request to rejected, storing the reason.
// No balance effect: nothing was ever debited for a pending request.
func (a *Approver) Reject(ctx context.Context, id RequestID, reason string) (*LeaveRequest, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "rejection_reason", Message: "required"}
	}

	req, err := a.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, &InvalidStateTransitionError{RequestID: id, From: req.Status, To: StatusRejected}
	}

	moved, err := a.Store.TransitionRequest(ctx, id, StatusPending, StatusRejected, reason)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, &InvalidStateTransitionError{RequestID: id, From: StatusRejected, To: StatusRejected}
	}

	req.Status = StatusRejected
	req.RejectionReason = reason
	notifyAsync(a.Logger, "status_changed", req, a.gatewayStatus())
	return req, nil
}

// Delete removes a request while it is still pending. Terminal requests
// are never deleted.
func (a *Approver) Delete(ctx context.Context, id RequestID) error {
	req, err := a.Store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return &InvalidStateTransitionError{RequestID: id, From: req.Status, To: StatusPending}
	}

	deleted, err := a.Store.DeleteRequest(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		// Lost a race with a concurrent transition.
		return &InvalidStateTransitionError{RequestID: id, From: StatusApproved, To: StatusPending}
	}
	return nil
}

func (a *Approver) gatewayStatus() func(context.Context, *LeaveRequest) error {
	if a.Gateway == nil {
		return nil
	}
	return a.Gateway.NotifyStatusChanged
}
