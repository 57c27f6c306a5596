/*
handlers_test.go - HTTP-level tests over the in-memory store

Drives the API the way a client would: JSON in, JSON out, status codes
checked against the error mapping contract.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdesk/leave-engine/leave"
	"github.com/crewdesk/leave-engine/leave/store"
)

// setBalance writes a starting balance directly into the store.
func setBalance(t *testing.T, mem *store.Memory, id string, balance float64) {
	t.Helper()
	err := mem.ResetBalance(context.Background(), leave.EmployeeID(id), decimal.NewFromFloat(balance))
	require.NoError(t, err)
}

func testServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	h := NewHandler(mem, &leave.LogGateway{Logger: logger}, logger)
	srv := httptest.NewServer(NewRouter(h, logger))
	t.Cleanup(srv.Close)
	return srv, mem
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func createEmployee(t *testing.T, srv *httptest.Server, id string, doj string) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/employees", map[string]any{
		"id":              id,
		"name":            "Test Employee",
		"email":           id + "@example.com",
		"date_of_joining": doj,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// LEAVE LIFECYCLE OVER HTTP
// =============================================================================

func TestLeaveLifecycle_EndToEnd(t *testing.T) {
	// GIVEN: An employee with a balance of 2
	// WHEN: Creating a 2-weekday paid request, approving it, and then
	//       trying to create another identical request
	// THEN: The approval drains the balance to 0 and the second create
	//       is refused with the balance message
	srv, mem := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")
	setBalance(t, mem, "e1", 2)

	body := map[string]any{
		"employee_id":    "e1",
		"reason":         "family visit",
		"start_date":     "2026-01-05",
		"end_date":       "2026-01-06",
		"leave_type":     "paid",
		"leave_day_type": "multiple",
	}

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/leaves", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, 2.0, created["total_days"])
	id := created["id"].(string)

	resp, approved := doJSON(t, http.MethodPost, srv.URL+"/api/leaves/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", approved["status"])

	resp, bal := doJSON(t, http.MethodGet, srv.URL+"/api/employees/e1/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, bal["leave_balance"])

	resp, errBody := doJSON(t, http.MethodPost, srv.URL+"/api/leaves", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "insufficient_balance", errBody["code"])
	assert.Equal(t, "Your leave balance is not enough to take paid leave.", errBody["error"])
}

func TestApproveTwice_Conflict(t *testing.T) {
	srv, mem := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")
	setBalance(t, mem, "e1", 5)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/leaves", map[string]any{
		"employee_id": "e1", "start_date": "2026-01-05", "end_date": "2026-01-05",
		"leave_type": "paid", "leave_day_type": "single",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["id"].(string)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/leaves/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, errBody := doJSON(t, http.MethodPost, srv.URL+"/api/leaves/"+id+"/approve", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_state_transition", errBody["code"])
}

func TestReject_RequiresReasonOverHTTP(t *testing.T) {
	srv, mem := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")
	setBalance(t, mem, "e1", 5)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/leaves", map[string]any{
		"employee_id": "e1", "start_date": "2026-01-05", "end_date": "2026-01-05",
		"leave_type": "paid", "leave_day_type": "single",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["id"].(string)

	resp, errBody := doJSON(t, http.MethodPost, srv.URL+"/api/leaves/"+id+"/reject", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", errBody["code"])

	resp, rejected := doJSON(t, http.MethodPost, srv.URL+"/api/leaves/"+id+"/reject",
		map[string]any{"reason": "coverage gap"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rejected", rejected["status"])
	assert.Equal(t, "coverage gap", rejected["rejection_reason"])
}

func TestAdminCreate_SkipsPending(t *testing.T) {
	srv, mem := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")
	setBalance(t, mem, "e1", 5)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/leaves", map[string]any{
		"employee_id": "e1", "start_date": "2026-01-05", "end_date": "2026-01-06",
		"leave_type": "paid", "leave_day_type": "multiple",
		"acting_as_admin": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "approved", created["status"])

	_, bal := doJSON(t, http.MethodGet, srv.URL+"/api/employees/e1/balance", nil)
	assert.Equal(t, 3.0, bal["leave_balance"])
}

func TestGetLeave_NotFound(t *testing.T) {
	srv, _ := testServer(t)

	resp, errBody := doJSON(t, http.MethodGet, srv.URL+"/api/leaves/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errBody["code"])
}

func TestCreateLeave_BadDate(t *testing.T) {
	srv, _ := testServer(t)

	resp, errBody := doJSON(t, http.MethodPost, srv.URL+"/api/leaves", map[string]any{
		"employee_id": "e1", "start_date": "05/01/2026", "end_date": "2026-01-06",
		"leave_type": "paid", "leave_day_type": "multiple",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", errBody["code"])
}

// =============================================================================
// EMPLOYEES AND ACCRUALS OVER HTTP
// =============================================================================

func TestCreateEmployee_NewHireGrant(t *testing.T) {
	// GIVEN: A hire dated the 10th of the current month
	// WHEN: Creating the employee
	// THEN: The response already shows the bootstrap grant of 1.5
	srv, _ := testServer(t)
	now := time.Now().UTC()
	doj := fmt.Sprintf("%04d-%02d-10", now.Year(), now.Month())

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/employees", map[string]any{
		"id": "e1", "name": "New Hire", "email": "e1@example.com", "date_of_joining": doj,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1.5, created["leave_balance"])
}

func TestCreateEmployee_LateHireNoGrant(t *testing.T) {
	srv, _ := testServer(t)
	now := time.Now().UTC()
	doj := fmt.Sprintf("%04d-%02d-20", now.Year(), now.Month())

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/employees", map[string]any{
		"id": "e1", "name": "Late Hire", "email": "e1@example.com", "date_of_joining": doj,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 0.0, created["leave_balance"])
}

func TestRunMonthlyAccrual_Endpoint(t *testing.T) {
	srv, _ := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")
	createEmployee(t, srv, "e2", "2024-03-01")

	resp, res := doJSON(t, http.MethodPost, srv.URL+"/api/admin/accrual/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, res["granted"])

	// Second run in the same month: everyone skipped.
	resp, res = doJSON(t, http.MethodPost, srv.URL+"/api/admin/accrual/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, res["granted"])
	assert.Equal(t, 2.0, res["skipped"])
}

func TestManualAccrual_DuplicateMonthConflict(t *testing.T) {
	srv, _ := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")

	body := map[string]any{"employee_id": "e1", "month": "2025-06", "amount": 2}

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/accruals", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, errBody := doJSON(t, http.MethodPost, srv.URL+"/api/accruals", body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_accrual", errBody["code"])
}

func TestManualAccrual_AmountBelowOne(t *testing.T) {
	srv, _ := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")

	resp, errBody := doJSON(t, http.MethodPost, srv.URL+"/api/accruals",
		map[string]any{"employee_id": "e1", "month": "2025-06", "amount": 0.5})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", errBody["code"])
}

func TestRunCarryForward_Endpoint(t *testing.T) {
	srv, _ := testServer(t)
	createEmployee(t, srv, "e1", "2024-03-01")

	resp, res := doJSON(t, http.MethodPost, srv.URL+"/api/admin/carryforward/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, res["processed"])
	assert.Equal(t, 0.0, res["failed"])
}
