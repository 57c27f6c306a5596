package leave

import (
	"context"
	"log/slog"
)

// =============================================================================
// NOTIFICATION GATEWAY - Fire-and-forget external collaborator
// =============================================================================

// NotificationGateway receives notifications about new requests and
// status changes. The ledger never depends on its success: failures are
// logged and swallowed, and dispatch never blocks or rolls back the
// originating operation.
type NotificationGateway interface {
	NotifyRequestCreated(ctx context.Context, r *LeaveRequest) error
	NotifyStatusChanged(ctx context.Context, r *LeaveRequest) error
}

// LogGateway is a NotificationGateway that only logs. It stands in for
// the mail delivery owned by the surrounding application.
type LogGateway struct {
	Logger *slog.Logger
}

func (g *LogGateway) NotifyRequestCreated(_ context.Context, r *LeaveRequest) error {
	g.logger().Info("leave request created",
		"request_id", string(r.ID),
		"employee_id", string(r.EmployeeID),
		"leave_type", string(r.LeaveType),
		"total_days", r.TotalDays.String(),
	)
	return nil
}

func (g *LogGateway) NotifyStatusChanged(_ context.Context, r *LeaveRequest) error {
	g.logger().Info("leave request status changed",
		"request_id", string(r.ID),
		"employee_id", string(r.EmployeeID),
		"status", string(r.Status),
	)
	return nil
}

func (g *LogGateway) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// notifyAsync dispatches a notification on its own goroutine and logs
// the outcome. The originating operation has already committed by the
// time this runs; a delivery failure must not surface to the caller.
func notifyAsync(logger *slog.Logger, what string, r *LeaveRequest, fn func(context.Context, *LeaveRequest) error) {
	if fn == nil {
		return
	}
	snapshot := *r
	go func() {
		if err := fn(context.Background(), &snapshot); err != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("notification failed",
				"event", what,
				"request_id", string(snapshot.ID),
				"error", err,
			)
		}
	}()
}
