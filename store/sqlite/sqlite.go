/*
Package sqlite provides a SQLite-backed implementation of the leave
storage interfaces.

PURPOSE:
  Implements leave.TxStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:       balance-bearing entity records
  leave_requests:  request lifecycle and day counts
  accrual_entries: immutable monthly grant records

ATOMIC ADJUSTMENTS:
  Balance changes are single conditional UPDATE expressions
  ("SET leave_balance = leave_balance + ?"), never read-then-write from
  Go. The sufficiency guard lives in the WHERE clause, so two concurrent
  debits against one employee both land or the second one fails cleanly.

IDEMPOTENCY:
  UNIQUE(employee_id, month) on accrual_entries makes the monthly job
  re-runnable: a duplicate insert surfaces leave.ErrDuplicateAccrual.

VALUE REPRESENTATION:
  Balances and day counts are stored as REAL. Every value in this system
  is a multiple of 0.5, which binary floating point represents exactly,
  so in-database arithmetic stays precise. The Go layer converts to
  decimal.Decimal at the boundary.

WAL MODE:
  The database is opened with WAL for better concurrency: multiple
  readers don't block, a single writer at a time, better crash recovery.

SEE ALSO:
  - leave/store.go: interface contracts
  - leave/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crewdesk/leave-engine/leave"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	session
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite3 driver serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent request handlers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, session: session{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		date_of_joining TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		leave_balance REAL NOT NULL DEFAULT 0,
		carry_forward REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_active
		ON employees(active);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		reason TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		leave_day_type TEXT NOT NULL,
		total_days REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);
	-- Hot path for the annual job: approved paid days by start date.
	CREATE INDEX IF NOT EXISTS idx_requests_employee_status_start
		ON leave_requests(employee_id, status, start_date);

	CREATE TABLE IF NOT EXISTS accrual_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		month TEXT NOT NULL,
		amount REAL NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, month)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_employee_month
		ON accrual_entries(employee_id, month);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes fn within a database transaction. If fn returns an
// error, every write is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &leave.PersistenceError{Op: "begin transaction", Err: err}
	}

	if err := fn(&session{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &leave.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

var _ leave.TxStore = (*Store)(nil)

// =============================================================================
// SESSION - Store methods shared between the root DB and a transaction
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type session struct {
	q querier
}

var _ leave.Store = (*session)(nil)

const dateLayout = "2006-01-02"

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (s *session) CreateEmployee(ctx context.Context, e *leave.Employee) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, date_of_joining, active, leave_balance, carry_forward, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), e.Name, e.Email,
		e.DateOfJoining.Format(dateLayout), e.Active,
		e.LeaveBalance.InexactFloat64(), e.CarryForward.InexactFloat64(),
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &leave.PersistenceError{Op: "create employee", Err: err}
	}
	return nil
}

func (s *session) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, email, date_of_joining, active, leave_balance, carry_forward, created_at
		FROM employees WHERE id = ?`, string(id))
	return scanEmployee(row, string(id))
}

func (s *session) ListActiveEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, email, date_of_joining, active, leave_balance, carry_forward, created_at
		FROM employees WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, &leave.PersistenceError{Op: "list active employees", Err: err}
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployeeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, &leave.PersistenceError{Op: "list active employees", Err: err}
	}
	return out, nil
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (s *session) GetBalance(ctx context.Context, id leave.EmployeeID) (leave.Balance, error) {
	var balance, carry float64
	err := s.q.QueryRowContext(ctx,
		`SELECT leave_balance, carry_forward FROM employees WHERE id = ?`,
		string(id)).Scan(&balance, &carry)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Balance{}, &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	if err != nil {
		return leave.Balance{}, &leave.PersistenceError{Op: "get balance", Err: err}
	}
	return leave.Balance{
		LeaveBalance: decimal.NewFromFloat(balance),
		CarryForward: decimal.NewFromFloat(carry),
	}, nil
}

func (s *session) AdjustBalance(ctx context.Context, id leave.EmployeeID, delta decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE employees SET leave_balance = leave_balance + ? WHERE id = ?`,
		delta.InexactFloat64(), string(id))
	if err != nil {
		return &leave.PersistenceError{Op: "adjust balance", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return nil
}

func (s *session) AdjustBalanceIfSufficient(ctx context.Context, id leave.EmployeeID, debit decimal.Decimal) error {
	// The guard lives in the WHERE clause: the decrement applies only if
	// the resulting balance stays non-negative.
	res, err := s.q.ExecContext(ctx,
		`UPDATE employees SET leave_balance = leave_balance - ?
		 WHERE id = ? AND leave_balance >= ?`,
		debit.InexactFloat64(), string(id), debit.InexactFloat64())
	if err != nil {
		return &leave.PersistenceError{Op: "conditional debit", Err: err}
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Guard failed: distinguish missing employee from insufficient balance.
	bal, err := s.GetBalance(ctx, id)
	if err != nil {
		return err
	}
	return &leave.InsufficientBalanceError{
		EmployeeID: id,
		Available:  bal.LeaveBalance,
		Requested:  debit,
	}
}

func (s *session) SetCarryForward(ctx context.Context, id leave.EmployeeID, value decimal.Decimal) error {
	return s.setEmployeeField(ctx, id, "carry_forward", value, "set carry forward")
}

func (s *session) ResetBalance(ctx context.Context, id leave.EmployeeID, value decimal.Decimal) error {
	return s.setEmployeeField(ctx, id, "leave_balance", value, "reset balance")
}

func (s *session) setEmployeeField(ctx context.Context, id leave.EmployeeID, column string, value decimal.Decimal, op string) error {
	res, err := s.q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE employees SET %s = ? WHERE id = ?`, column),
		value.InexactFloat64(), string(id))
	if err != nil {
		return &leave.PersistenceError{Op: op, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *session) CreateRequest(ctx context.Context, r *leave.LeaveRequest) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_requests
			(id, employee_id, reason, start_date, end_date, leave_type, leave_day_type,
			 total_days, status, rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.EmployeeID), r.Reason,
		r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		string(r.LeaveType), string(r.LeaveDayType),
		r.TotalDays.InexactFloat64(), string(r.Status), r.RejectionReason,
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &leave.PersistenceError{Op: "create request", Err: err}
	}
	return nil
}

func (s *session) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, employee_id, reason, start_date, end_date, leave_type, leave_day_type,
		       total_days, status, rejection_reason, created_at, updated_at
		FROM leave_requests WHERE id = ?`, string(id))
	return scanRequest(row, string(id))
}

func (s *session) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	query := `
		SELECT id, employee_id, reason, start_date, end_date, leave_type, leave_day_type,
		       total_days, status, rejection_reason, created_at, updated_at
		FROM leave_requests`
	var conds []string
	var args []any
	if f.EmployeeID != "" {
		conds = append(conds, "employee_id = ?")
		args = append(args, string(f.EmployeeID))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &leave.PersistenceError{Op: "list requests", Err: err}
	}
	defer rows.Close()

	var out []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequestRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, &leave.PersistenceError{Op: "list requests", Err: err}
	}
	return out, nil
}

func (s *session) UpdateRequest(ctx context.Context, r *leave.LeaveRequest) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_requests
		SET reason = ?, start_date = ?, end_date = ?, leave_type = ?, leave_day_type = ?,
		    total_days = ?, updated_at = ?
		WHERE id = ?`,
		r.Reason, r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		string(r.LeaveType), string(r.LeaveDayType),
		r.TotalDays.InexactFloat64(), r.UpdatedAt.Format(time.RFC3339),
		string(r.ID),
	)
	if err != nil {
		return &leave.PersistenceError{Op: "update request", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "request", ID: string(r.ID)}
	}
	return nil
}

func (s *session) TransitionRequest(ctx context.Context, id leave.RequestID, from, to leave.Status, rejectionReason string) (bool, error) {
	// Compare-and-set on status: the WHERE clause is the exactly-once guard.
	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), rejectionReason, time.Now().UTC().Format(time.RFC3339),
		string(id), string(from),
	)
	if err != nil {
		return false, &leave.PersistenceError{Op: "transition request", Err: err}
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	// Not transitioned: missing or already moved on.
	var exists int
	err = s.q.QueryRowContext(ctx,
		`SELECT 1 FROM leave_requests WHERE id = ?`, string(id)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	if err != nil {
		return false, &leave.PersistenceError{Op: "transition request", Err: err}
	}
	return false, nil
}

func (s *session) DeleteRequest(ctx context.Context, id leave.RequestID) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM leave_requests WHERE id = ? AND status = ?`,
		string(id), string(leave.StatusPending))
	if err != nil {
		return false, &leave.PersistenceError{Op: "delete request", Err: err}
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	var exists int
	err = s.q.QueryRowContext(ctx,
		`SELECT 1 FROM leave_requests WHERE id = ?`, string(id)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	if err != nil {
		return false, &leave.PersistenceError{Op: "delete request", Err: err}
	}
	return false, nil
}

func (s *session) SumApprovedPaidDays(ctx context.Context, id leave.EmployeeID, from, to time.Time) (decimal.Decimal, error) {
	var sum float64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_days), 0)
		FROM leave_requests
		WHERE employee_id = ? AND status = ? AND leave_type = ?
		  AND start_date >= ? AND start_date < ?`,
		string(id), string(leave.StatusApproved), string(leave.LeavePaid),
		from.Format(dateLayout), to.Format(dateLayout),
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, &leave.PersistenceError{Op: "sum approved paid days", Err: err}
	}
	return decimal.NewFromFloat(sum), nil
}

// =============================================================================
// ACCRUAL STORE
// =============================================================================

func (s *session) CreateEntry(ctx context.Context, e *leave.AccrualEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accrual_entries (id, employee_id, month, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(e.ID), string(e.EmployeeID),
		leave.MonthOf(e.Month).Format(dateLayout),
		e.Amount.InexactFloat64(), e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return leave.ErrDuplicateAccrual
		}
		return &leave.PersistenceError{Op: "create accrual entry", Err: err}
	}
	return nil
}

func (s *session) GetEntry(ctx context.Context, id leave.EntryID) (*leave.AccrualEntry, error) {
	var e leave.AccrualEntry
	var eid, empID, month, createdAt string
	var amount float64
	err := s.q.QueryRowContext(ctx, `
		SELECT id, employee_id, month, amount, created_at
		FROM accrual_entries WHERE id = ?`, string(id)).
		Scan(&eid, &empID, &month, &amount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &leave.NotFoundError{Kind: "accrual entry", ID: string(id)}
	}
	if err != nil {
		return nil, &leave.PersistenceError{Op: "get accrual entry", Err: err}
	}

	e.ID = leave.EntryID(eid)
	e.EmployeeID = leave.EmployeeID(empID)
	e.Month, _ = time.Parse(dateLayout, month)
	e.Amount = decimal.NewFromFloat(amount)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

func (s *session) ListEntries(ctx context.Context, employeeID leave.EmployeeID, month time.Time) ([]leave.AccrualEntry, error) {
	query := `SELECT id, employee_id, month, amount, created_at FROM accrual_entries`
	var conds []string
	var args []any
	if employeeID != "" {
		conds = append(conds, "employee_id = ?")
		args = append(args, string(employeeID))
	}
	if !month.IsZero() {
		conds = append(conds, "month = ?")
		args = append(args, leave.MonthOf(month).Format(dateLayout))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY month"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &leave.PersistenceError{Op: "list accrual entries", Err: err}
	}
	defer rows.Close()

	var out []leave.AccrualEntry
	for rows.Next() {
		var eid, empID, m, createdAt string
		var amount float64
		if err := rows.Scan(&eid, &empID, &m, &amount, &createdAt); err != nil {
			return nil, &leave.PersistenceError{Op: "list accrual entries", Err: err}
		}
		e := leave.AccrualEntry{
			ID:         leave.EntryID(eid),
			EmployeeID: leave.EmployeeID(empID),
			Amount:     decimal.NewFromFloat(amount),
		}
		e.Month, _ = time.Parse(dateLayout, m)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &leave.PersistenceError{Op: "list accrual entries", Err: err}
	}
	return out, nil
}

func (s *session) UpdateEntryAmount(ctx context.Context, id leave.EntryID, amount decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE accrual_entries SET amount = ? WHERE id = ?`,
		amount.InexactFloat64(), string(id))
	if err != nil {
		return &leave.PersistenceError{Op: "update accrual entry", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "accrual entry", ID: string(id)}
	}
	return nil
}

func (s *session) SumEntries(ctx context.Context, id leave.EmployeeID, from, to time.Time) (decimal.Decimal, error) {
	var sum float64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM accrual_entries
		WHERE employee_id = ? AND month >= ? AND month < ?`,
		string(id), leave.MonthOf(from).Format(dateLayout), to.Format(dateLayout),
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, &leave.PersistenceError{Op: "sum accrual entries", Err: err}
	}
	return decimal.NewFromFloat(sum), nil
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row *sql.Row, id string) (*leave.Employee, error) {
	e, err := scanEmployeeFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &leave.NotFoundError{Kind: "employee", ID: id}
	}
	if err != nil {
		return nil, &leave.PersistenceError{Op: "get employee", Err: err}
	}
	return e, nil
}

func scanEmployeeRows(rows *sql.Rows) (*leave.Employee, error) {
	e, err := scanEmployeeFrom(rows)
	if err != nil {
		return nil, &leave.PersistenceError{Op: "scan employee", Err: err}
	}
	return e, nil
}

func scanEmployeeFrom(r rowScanner) (*leave.Employee, error) {
	var e leave.Employee
	var id, doj, createdAt string
	var balance, carry float64
	if err := r.Scan(&id, &e.Name, &e.Email, &doj, &e.Active, &balance, &carry, &createdAt); err != nil {
		return nil, err
	}
	e.ID = leave.EmployeeID(id)
	e.DateOfJoining, _ = time.Parse(dateLayout, doj)
	e.LeaveBalance = decimal.NewFromFloat(balance)
	e.CarryForward = decimal.NewFromFloat(carry)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

func scanRequest(row *sql.Row, id string) (*leave.LeaveRequest, error) {
	r, err := scanRequestFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &leave.NotFoundError{Kind: "request", ID: id}
	}
	if err != nil {
		return nil, &leave.PersistenceError{Op: "get request", Err: err}
	}
	return r, nil
}

func scanRequestRows(rows *sql.Rows) (*leave.LeaveRequest, error) {
	r, err := scanRequestFrom(rows)
	if err != nil {
		return nil, &leave.PersistenceError{Op: "scan request", Err: err}
	}
	return r, nil
}

func scanRequestFrom(sc rowScanner) (*leave.LeaveRequest, error) {
	var r leave.LeaveRequest
	var id, empID, start, end, leaveType, dayType, status, createdAt, updatedAt string
	var totalDays float64
	if err := sc.Scan(&id, &empID, &r.Reason, &start, &end, &leaveType, &dayType,
		&totalDays, &status, &r.RejectionReason, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.ID = leave.RequestID(id)
	r.EmployeeID = leave.EmployeeID(empID)
	r.StartDate, _ = time.Parse(dateLayout, start)
	r.EndDate, _ = time.Parse(dateLayout, end)
	r.LeaveType = leave.LeaveType(leaveType)
	r.LeaveDayType = leave.LeaveDayType(dayType)
	r.TotalDays = decimal.NewFromFloat(totalDays)
	r.Status = leave.Status(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}
