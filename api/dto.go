/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Structural validation (parseable dates, known enums) happens in the
  handlers; business-rule validation lives in the leave package.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"time"

	"github.com/crewdesk/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateLeaveRequest is the request body for creating a leave request.
// Dates use the 2006-01-02 layout. Day counts are computed server-side.
type CreateLeaveRequest struct {
	EmployeeID   string `json:"employee_id"`
	Reason       string `json:"reason"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	LeaveType    string `json:"leave_type"`
	LeaveDayType string `json:"leave_day_type"`

	// ActingAsAdmin creates the request directly in the approved state,
	// applying the paid debit synchronously.
	ActingAsAdmin bool `json:"acting_as_admin,omitempty"`
}

// EditLeaveRequest is the request body for editing a pending request.
type EditLeaveRequest struct {
	Reason       string `json:"reason"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	LeaveType    string `json:"leave_type"`
	LeaveDayType string `json:"leave_day_type"`
}

// RejectLeaveRequest carries the mandatory rejection reason.
type RejectLeaveRequest struct {
	Reason string `json:"reason"`
}

// CreateEmployeeRequest is the request body for creating an employee.
type CreateEmployeeRequest struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	DateOfJoining string `json:"date_of_joining"`
}

// CreateAccrualEntryRequest records a manual administrative grant.
type CreateAccrualEntryRequest struct {
	EmployeeID string  `json:"employee_id"`
	Month      string  `json:"month"` // 2006-01 or 2006-01-02
	Amount     float64 `json:"amount"`
}

// OverrideAccrualEntryRequest rewrites an entry's amount.
type OverrideAccrualEntryRequest struct {
	Amount float64 `json:"amount"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID              string  `json:"id"`
	EmployeeID      string  `json:"employee_id"`
	Reason          string  `json:"reason,omitempty"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	LeaveType       string  `json:"leave_type"`
	LeaveDayType    string  `json:"leave_day_type"`
	TotalDays       float64 `json:"total_days"`
	Status          string  `json:"status"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	DateOfJoining string  `json:"date_of_joining"`
	Active        bool    `json:"active"`
	LeaveBalance  float64 `json:"leave_balance"`
	CarryForward  float64 `json:"carry_forward"`
}

// BalanceDTO is the balance pair for one employee.
type BalanceDTO struct {
	EmployeeID   string  `json:"employee_id"`
	LeaveBalance float64 `json:"leave_balance"`
	CarryForward float64 `json:"carry_forward"`
}

// AccrualEntryDTO represents a monthly grant record.
type AccrualEntryDTO struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Month      string  `json:"month"`
	Amount     float64 `json:"amount"`
}

// AccrualRunDTO summarizes a monthly accrual run.
type AccrualRunDTO struct {
	Month   string `json:"month"`
	Granted int    `json:"granted"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// CarryForwardRunDTO summarizes an annual carry-forward run.
type CarryForwardRunDTO struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func toLeaveRequestDTO(r *leave.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:              string(r.ID),
		EmployeeID:      string(r.EmployeeID),
		Reason:          r.Reason,
		StartDate:       r.StartDate.Format(dateLayout),
		EndDate:         r.EndDate.Format(dateLayout),
		LeaveType:       string(r.LeaveType),
		LeaveDayType:    string(r.LeaveDayType),
		TotalDays:       r.TotalDays.InexactFloat64(),
		Status:          string(r.Status),
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
}

func toLeaveRequestDTOs(rs []leave.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(rs))
	for i := range rs {
		dtos[i] = toLeaveRequestDTO(&rs[i])
	}
	return dtos
}

func toEmployeeDTO(e *leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            string(e.ID),
		Name:          e.Name,
		Email:         e.Email,
		DateOfJoining: e.DateOfJoining.Format(dateLayout),
		Active:        e.Active,
		LeaveBalance:  e.LeaveBalance.InexactFloat64(),
		CarryForward:  e.CarryForward.InexactFloat64(),
	}
}

func toAccrualEntryDTO(e *leave.AccrualEntry) AccrualEntryDTO {
	return AccrualEntryDTO{
		ID:         string(e.ID),
		EmployeeID: string(e.EmployeeID),
		Month:      e.Month.Format("2006-01"),
		Amount:     e.Amount.InexactFloat64(),
	}
}
