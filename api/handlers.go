/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the leave accrual and balance ledger via REST. Handles HTTP
  request/response and JSON serialization, and delegates every decision
  to the leave package.

ENDPOINTS:
  Leaves:
    POST   /api/leaves                  Create request (admin flag bypasses pending)
    GET    /api/leaves                  List requests (?employee_id=&status=)
    GET    /api/leaves/{id}             Get one request
    PUT    /api/leaves/{id}             Edit a pending request
    DELETE /api/leaves/{id}             Delete a pending request
    POST   /api/leaves/{id}/approve     Approve
    POST   /api/leaves/{id}/reject      Reject (reason required)

  Employees:
    POST   /api/employees               Create (triggers new-hire grant)
    GET    /api/employees/{id}/balance  Live balance pair

  Accruals:
    GET    /api/accruals                List entries (?employee_id=&month=)
    POST   /api/accruals                Manual administrative grant
    PUT    /api/accruals/{id}           Override an entry amount

  Admin:
    POST   /api/admin/accrual/run       Run the monthly job now
    POST   /api/admin/carryforward/run  Run the annual job now

ERROR HANDLING:
  Typed domain errors map to HTTP statuses:
  - 400: validation, insufficient balance (distinct messages)
  - 404: unknown request/employee/entry
  - 409: invalid state transition, duplicate accrual month
  - 500: persistence failures (generic message, no internals leaked)

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/crewdesk/leave-engine/leave"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    leave.TxStore
	Engine   *leave.Engine
	Approver *leave.Approver
	Accrual  *leave.MonthlyAccrual
	Carry    *leave.CarryForward
	Logger   *slog.Logger
}

// NewHandler wires the domain services over the given store.
func NewHandler(store leave.TxStore, gateway leave.NotificationGateway, logger *slog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Engine:   &leave.Engine{Store: store, Gateway: gateway, Logger: logger},
		Approver: &leave.Approver{Store: store, Gateway: gateway, Logger: logger},
		Accrual:  &leave.MonthlyAccrual{Store: store, Logger: logger},
		Carry:    &leave.CarryForward{Store: store, Logger: logger},
		Logger:   logger,
	}
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// CreateLeave creates a leave request. With acting_as_admin set, the
// request is approved at creation and the paid debit applied
// synchronously.
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var body CreateLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	in, err := parseCreateInput(body)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req *leave.LeaveRequest
	if body.ActingAsAdmin {
		req, err = h.Engine.CreateApprovedRequest(r.Context(), in)
	} else {
		req, err = h.Engine.CreateRequest(r.Context(), in)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(req))
}

// ListLeaves returns requests, optionally filtered by employee and status.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	f := leave.RequestFilter{
		EmployeeID: leave.EmployeeID(r.URL.Query().Get("employee_id")),
		Status:     leave.Status(r.URL.Query().Get("status")),
	}
	reqs, err := h.Store.ListRequests(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// GetLeave returns a single request.
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	req, err := h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// EditLeave edits a pending request in place, re-validating the day
// count and balance sufficiency. No state transition, no balance effect.
func (h *Handler) EditLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body EditLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	// employee_id comes from the stored request on edit.
	in, err := parseCreateInput(CreateLeaveRequest{
		Reason:       body.Reason,
		StartDate:    body.StartDate,
		EndDate:      body.EndDate,
		LeaveType:    body.LeaveType,
		LeaveDayType: body.LeaveDayType,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	req, err := h.Engine.EditPending(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// DeleteLeave removes a pending request.
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	if err := h.Approver.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ApproveLeave approves a pending request and applies the paid debit.
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	req, err := h.Approver.Approve(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// RejectLeave rejects a pending request with a mandatory reason.
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body RejectLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	req, err := h.Approver.Reject(r.Context(), id, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// CreateEmployee creates an employee record and applies the new-hire
// accrual grant when the date of joining qualifies.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var body CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	doj, err := time.Parse(dateLayout, body.DateOfJoining)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date_of_joining must be YYYY-MM-DD", err)
		return
	}

	id := body.ID
	if id == "" {
		id = uuid.NewString()
	}
	emp := &leave.Employee{
		ID:            leave.EmployeeID(id),
		Name:          body.Name,
		Email:         body.Email,
		DateOfJoining: doj,
		Active:        true,
		LeaveBalance:  decimal.Zero,
		CarryForward:  decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.Store.CreateEmployee(r.Context(), emp); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Accrual.BootstrapNewHire(r.Context(), emp); err != nil {
		// The employee exists; the grant can be recovered by the monthly run.
		h.Logger.Error("new-hire grant failed", "employee_id", id, "error", err)
	}

	created, err := h.Store.GetEmployee(r.Context(), emp.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(created))
}

// GetBalance returns the live balance pair for an employee.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))
	bal, err := h.Store.GetBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID:   string(id),
		LeaveBalance: bal.LeaveBalance.InexactFloat64(),
		CarryForward: bal.CarryForward.InexactFloat64(),
	})
}

// =============================================================================
// ACCRUAL HANDLERS
// =============================================================================

// ListAccruals returns accrual entries filtered by employee and/or month.
func (h *Handler) ListAccruals(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(r.URL.Query().Get("employee_id"))
	var month time.Time
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := parseMonth(m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM or YYYY-MM-DD", err)
			return
		}
		month = parsed
	}

	entries, err := h.Store.ListEntries(r.Context(), employeeID, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AccrualEntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toAccrualEntryDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccrual records a manual administrative grant.
func (h *Handler) CreateAccrual(w http.ResponseWriter, r *http.Request) {
	var body CreateAccrualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	month, err := parseMonth(body.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM or YYYY-MM-DD", err)
		return
	}

	entry, err := h.Accrual.CreateManualEntry(r.Context(),
		leave.EmployeeID(body.EmployeeID), month, decimal.NewFromFloat(body.Amount))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccrualEntryDTO(entry))
}

// OverrideAccrual rewrites an entry amount, adjusting the live balance
// by the delta.
func (h *Handler) OverrideAccrual(w http.ResponseWriter, r *http.Request) {
	id := leave.EntryID(chi.URLParam(r, "id"))

	var body OverrideAccrualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	entry, err := h.Accrual.OverrideEntry(r.Context(), id, decimal.NewFromFloat(body.Amount))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccrualEntryDTO(entry))
}

// =============================================================================
// ADMIN JOB TRIGGERS
// =============================================================================

// RunMonthlyAccrual runs the monthly job immediately.
func (h *Handler) RunMonthlyAccrual(w http.ResponseWriter, r *http.Request) {
	res, err := h.Accrual.Run(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualRunDTO{
		Month:   res.Month.Format("2006-01"),
		Granted: res.Granted,
		Skipped: res.Skipped,
		Failed:  res.Failed,
	})
}

// RunCarryForward runs the annual job immediately.
func (h *Handler) RunCarryForward(w http.ResponseWriter, r *http.Request) {
	res, err := h.Carry.Run(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CarryForwardRunDTO{
		Processed: res.Processed,
		Failed:    res.Failed,
	})
}

// =============================================================================
// PARSING AND ERROR MAPPING
// =============================================================================

func parseCreateInput(body CreateLeaveRequest) (leave.CreateRequestInput, error) {
	var in leave.CreateRequestInput

	start, err := time.Parse(dateLayout, body.StartDate)
	if err != nil {
		return in, &leave.ValidationError{Field: "start_date", Message: "must be YYYY-MM-DD"}
	}
	end, err := time.Parse(dateLayout, body.EndDate)
	if err != nil {
		return in, &leave.ValidationError{Field: "end_date", Message: "must be YYYY-MM-DD"}
	}

	return leave.CreateRequestInput{
		EmployeeID:   leave.EmployeeID(body.EmployeeID),
		Reason:       body.Reason,
		StartDate:    start,
		EndDate:      end,
		LeaveType:    leave.LeaveType(body.LeaveType),
		LeaveDayType: leave.LeaveDayType(body.LeaveDayType),
	}, nil
}

func parseMonth(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Code = "bad_request"
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps typed domain errors to HTTP statuses with
// distinct, actionable messages. Persistence failures get a generic
// message; internals are never leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leave.ErrInsufficientBalance):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Your leave balance is not enough to take paid leave.",
			Code:  "insufficient_balance",
		})
	case errors.Is(err, leave.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "validation_failed",
		})
	case errors.Is(err, leave.ErrInvalidStateTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "This request has already been finalized and can no longer be changed.",
			Code:  "invalid_state_transition",
		})
	case errors.Is(err, leave.ErrDuplicateAccrual):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "An accrual entry already exists for that month.",
			Code:  "duplicate_accrual",
		})
	case leave.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "not_found",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Something went wrong. Please try again.",
			Code:  "internal",
		})
	}
}
