// Package store provides an in-memory leave.Store implementation for
// tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/crewdesk/leave-engine/leave"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[leave.EmployeeID]leave.Employee
	requests  map[leave.RequestID]leave.LeaveRequest
	entries   map[leave.EntryID]leave.AccrualEntry
	// entryMonths guards employee+month uniqueness.
	entryMonths map[monthKey]leave.EntryID
}

type monthKey struct {
	EmployeeID leave.EmployeeID
	Month      time.Time
}

func NewMemory() *Memory {
	return &Memory{
		employees:   make(map[leave.EmployeeID]leave.Employee),
		requests:    make(map[leave.RequestID]leave.LeaveRequest),
		entries:     make(map[leave.EntryID]leave.AccrualEntry),
		entryMonths: make(map[monthKey]leave.EntryID),
	}
}

var _ leave.TxStore = (*Memory)(nil)

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (m *Memory) CreateEmployee(_ context.Context, e *leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = *e
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return &e, nil
}

func (m *Memory) ListActiveEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Employee
	for _, e := range m.employees {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, id leave.EmployeeID) (leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return leave.Balance{}, &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return leave.Balance{LeaveBalance: e.LeaveBalance, CarryForward: e.CarryForward}, nil
}

func (m *Memory) AdjustBalance(_ context.Context, id leave.EmployeeID, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustLocked(id, delta)
}

func (m *Memory) adjustLocked(id leave.EmployeeID, delta decimal.Decimal) error {
	e, ok := m.employees[id]
	if !ok {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	e.LeaveBalance = e.LeaveBalance.Add(delta)
	m.employees[id] = e
	return nil
}

func (m *Memory) AdjustBalanceIfSufficient(_ context.Context, id leave.EmployeeID, debit decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	if e.LeaveBalance.LessThan(debit) {
		return &leave.InsufficientBalanceError{
			EmployeeID: id,
			Available:  e.LeaveBalance,
			Requested:  debit,
		}
	}
	e.LeaveBalance = e.LeaveBalance.Sub(debit)
	m.employees[id] = e
	return nil
}

func (m *Memory) SetCarryForward(_ context.Context, id leave.EmployeeID, value decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	e.CarryForward = value
	m.employees[id] = e
	return nil
}

func (m *Memory) ResetBalance(_ context.Context, id leave.EmployeeID, value decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	e.LeaveBalance = value
	m.employees[id] = e
	return nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	return &r, nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.LeaveRequest
	for _, r := range m.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[r.ID]; !ok {
		return &leave.NotFoundError{Kind: "request", ID: string(r.ID)}
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *Memory) TransitionRequest(_ context.Context, id leave.RequestID, from, to leave.Status, rejectionReason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return false, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	if to == leave.StatusRejected {
		r.RejectionReason = rejectionReason
	}
	m.requests[id] = r
	return true, nil
}

func (m *Memory) DeleteRequest(_ context.Context, id leave.RequestID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return false, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	if r.Status != leave.StatusPending {
		return false, nil
	}
	delete(m.requests, id)
	return true, nil
}

func (m *Memory) SumApprovedPaidDays(_ context.Context, id leave.EmployeeID, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, r := range m.requests {
		if r.EmployeeID != id || r.Status != leave.StatusApproved || r.LeaveType != leave.LeavePaid {
			continue
		}
		if r.StartDate.Before(from) || !r.StartDate.Before(to) {
			continue
		}
		sum = sum.Add(r.TotalDays)
	}
	return sum, nil
}

// =============================================================================
// ACCRUAL STORE
// =============================================================================

func (m *Memory) CreateEntry(_ context.Context, e *leave.AccrualEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := monthKey{EmployeeID: e.EmployeeID, Month: leave.MonthOf(e.Month)}
	if _, exists := m.entryMonths[k]; exists {
		return leave.ErrDuplicateAccrual
	}
	m.entries[e.ID] = *e
	m.entryMonths[k] = e.ID
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id leave.EntryID) (*leave.AccrualEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "accrual entry", ID: string(id)}
	}
	return &e, nil
}

func (m *Memory) ListEntries(_ context.Context, employeeID leave.EmployeeID, month time.Time) ([]leave.AccrualEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.AccrualEntry
	for _, e := range m.entries {
		if employeeID != "" && e.EmployeeID != employeeID {
			continue
		}
		if !month.IsZero() && !leave.MonthOf(month).Equal(e.Month) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (m *Memory) UpdateEntryAmount(_ context.Context, id leave.EntryID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return &leave.NotFoundError{Kind: "accrual entry", ID: string(id)}
	}
	e.Amount = amount
	m.entries[id] = e
	return nil
}

func (m *Memory) SumEntries(_ context.Context, id leave.EmployeeID, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range m.entries {
		if e.EmployeeID != id {
			continue
		}
		if e.Month.Before(leave.MonthOf(from)) || !e.Month.Before(to) {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

// =============================================================================
// TRANSACTIONS - Simulated with snapshot + rollback on error
// =============================================================================

// WithTx executes fn against an unlocked view of the store. The
// top-level mutex is held for the whole unit, so concurrent WithTx
// blocks serialize; on error the snapshot is restored.
func (m *Memory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	employees   map[leave.EmployeeID]leave.Employee
	requests    map[leave.RequestID]leave.LeaveRequest
	entries     map[leave.EntryID]leave.AccrualEntry
	entryMonths map[monthKey]leave.EntryID
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		employees:   make(map[leave.EmployeeID]leave.Employee, len(m.employees)),
		requests:    make(map[leave.RequestID]leave.LeaveRequest, len(m.requests)),
		entries:     make(map[leave.EntryID]leave.AccrualEntry, len(m.entries)),
		entryMonths: make(map[monthKey]leave.EntryID, len(m.entryMonths)),
	}
	for k, v := range m.employees {
		s.employees[k] = v
	}
	for k, v := range m.requests {
		s.requests[k] = v
	}
	for k, v := range m.entries {
		s.entries[k] = v
	}
	for k, v := range m.entryMonths {
		s.entryMonths[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.employees = s.employees
	m.requests = s.requests
	m.entries = s.entries
	m.entryMonths = s.entryMonths
}

// txView routes Store calls back to the parent without re-locking.
type txView struct {
	parent *Memory
}

var _ leave.Store = (*txView)(nil)

func (v *txView) CreateEmployee(_ context.Context, e *leave.Employee) error {
	v.parent.employees[e.ID] = *e
	return nil
}

func (v *txView) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	e, ok := v.parent.employees[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return &e, nil
}

func (v *txView) ListActiveEmployees(ctx context.Context) ([]leave.Employee, error) {
	var out []leave.Employee
	for _, e := range v.parent.employees {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) GetBalance(_ context.Context, id leave.EmployeeID) (leave.Balance, error) {
	e, ok := v.parent.employees[id]
	if !ok {
		return leave.Balance{}, &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return leave.Balance{LeaveBalance: e.LeaveBalance, CarryForward: e.CarryForward}, nil
}

func (v *txView) AdjustBalance(_ context.Context, id leave.EmployeeID, delta decimal.Decimal) error {
	return v.parent.adjustLocked(id, delta)
}

func (v *txView) AdjustBalanceIfSufficient(_ context.Context, id leave.EmployeeID, debit decimal.Decimal) error {
	e, ok := v.parent.employees[id]
	if !ok {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	if e.LeaveBalance.LessThan(debit) {
		return &leave.InsufficientBalanceError{
			EmployeeID: id,
			Available:  e.LeaveBalance,
			Requested:  debit,
		}
	}
	e.LeaveBalance = e.LeaveBalance.Sub(debit)
	v.parent.employees[id] = e
	return nil
}

func (v *txView) SetCarryForward(_ context.Context, id leave.EmployeeID, value decimal.Decimal) error {
	e, ok := v.parent.employees[id]
	if !ok {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	e.CarryForward = value
	v.parent.employees[id] = e
	return nil
}

func (v *txView) ResetBalance(_ context.Context, id leave.EmployeeID, value decimal.Decimal) error {
	e, ok := v.parent.employees[id]
	if !ok {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	e.LeaveBalance = value
	v.parent.employees[id] = e
	return nil
}

func (v *txView) CreateRequest(_ context.Context, r *leave.LeaveRequest) error {
	v.parent.requests[r.ID] = *r
	return nil
}

func (v *txView) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	r, ok := v.parent.requests[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	return &r, nil
}

func (v *txView) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for _, r := range v.parent.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *txView) UpdateRequest(_ context.Context, r *leave.LeaveRequest) error {
	if _, ok := v.parent.requests[r.ID]; !ok {
		return &leave.NotFoundError{Kind: "request", ID: string(r.ID)}
	}
	v.parent.requests[r.ID] = *r
	return nil
}

func (v *txView) TransitionRequest(_ context.Context, id leave.RequestID, from, to leave.Status, rejectionReason string) (bool, error) {
	r, ok := v.parent.requests[id]
	if !ok {
		return false, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	if to == leave.StatusRejected {
		r.RejectionReason = rejectionReason
	}
	v.parent.requests[id] = r
	return true, nil
}

func (v *txView) DeleteRequest(_ context.Context, id leave.RequestID) (bool, error) {
	r, ok := v.parent.requests[id]
	if !ok {
		return false, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	if r.Status != leave.StatusPending {
		return false, nil
	}
	delete(v.parent.requests, id)
	return true, nil
}

func (v *txView) SumApprovedPaidDays(_ context.Context, id leave.EmployeeID, from, to time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, r := range v.parent.requests {
		if r.EmployeeID != id || r.Status != leave.StatusApproved || r.LeaveType != leave.LeavePaid {
			continue
		}
		if r.StartDate.Before(from) || !r.StartDate.Before(to) {
			continue
		}
		sum = sum.Add(r.TotalDays)
	}
	return sum, nil
}

func (v *txView) CreateEntry(_ context.Context, e *leave.AccrualEntry) error {
	k := monthKey{EmployeeID: e.EmployeeID, Month: leave.MonthOf(e.Month)}
	if _, exists := v.parent.entryMonths[k]; exists {
		return leave.ErrDuplicateAccrual
	}
	v.parent.entries[e.ID] = *e
	v.parent.entryMonths[k] = e.ID
	return nil
}

func (v *txView) GetEntry(_ context.Context, id leave.EntryID) (*leave.AccrualEntry, error) {
	e, ok := v.parent.entries[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "accrual entry", ID: string(id)}
	}
	return &e, nil
}

func (v *txView) ListEntries(_ context.Context, employeeID leave.EmployeeID, month time.Time) ([]leave.AccrualEntry, error) {
	var out []leave.AccrualEntry
	for _, e := range v.parent.entries {
		if employeeID != "" && e.EmployeeID != employeeID {
			continue
		}
		if !month.IsZero() && !leave.MonthOf(month).Equal(e.Month) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (v *txView) UpdateEntryAmount(_ context.Context, id leave.EntryID, amount decimal.Decimal) error {
	e, ok := v.parent.entries[id]
	if !ok {
		return &leave.NotFoundError{Kind: "accrual entry", ID: string(id)}
	}
	e.Amount = amount
	v.parent.entries[id] = e
	return nil
}

func (v *txView) SumEntries(_ context.Context, id leave.EmployeeID, from, to time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range v.parent.entries {
		if e.EmployeeID != id {
			continue
		}
		if e.Month.Before(leave.MonthOf(from)) || !e.Month.Before(to) {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}
