/*
accrual.go - Monthly accrual job and accrual entry administration

PURPOSE:
  Grants the fixed monthly leave increment to every active employee and
  records each grant as an immutable ledger entry.

IDEMPOTENCY:
  One entry per employee per month, enforced by the store
  (UNIQUE(employee_id, month) in SQLite). Re-running the job for the
  same month changes a balance exactly once. The entry insert and the
  balance grant land in one transaction per employee, so a crash
  mid-loop leaves no employee with an entry but no grant; a
  from-scratch rerun is always the recovery path.

NEW-HIRE BOOTSTRAP:
  An employee whose date of joining falls within the current accrual
  month, on or before the 15th, receives the full monthly grant (not
  prorated by days) at creation time. The grant uses the same
  employee+month key, so the regular run later in the month skips them.

ADMIN OVERRIDES:
  Entries are immutable except through OverrideEntry, which rewrites the
  amount and adjusts the live balance by the delta. CreateManualEntry
  lets an admin add a month record by hand (amount >= 1), also
  incrementing the balance.
*/
package leave

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTHLY ACCRUAL JOB
// =============================================================================

// MonthlyAccrual grants the fixed monthly increment to active employees.
type MonthlyAccrual struct {
	Store  TxStore
	Logger *slog.Logger

	// Grant is the fixed monthly amount; zero means DefaultMonthlyGrant.
	Grant decimal.Decimal

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// AccrualResult summarizes a job run.
type AccrualResult struct {
	Month   time.Time
	Granted int
	Skipped int
	Failed  int
}

// Run grants the monthly increment to every active employee for the
// current month. Safe to re-run: employees already granted this month
// are skipped.
func (j *MonthlyAccrual) Run(ctx context.Context) (AccrualResult, error) {
	month := MonthOf(j.now())
	res := AccrualResult{Month: month}

	employees, err := j.Store.ListActiveEmployees(ctx)
	if err != nil {
		return res, err
	}

	for _, emp := range employees {
		err := j.grantMonth(ctx, emp.ID, month)
		switch {
		case errors.Is(err, ErrDuplicateAccrual):
			res.Skipped++
		case err != nil:
			res.Failed++
			j.logger().Error("monthly accrual failed",
				"employee_id", string(emp.ID),
				"month", month.Format("2006-01"),
				"error", err,
			)
		default:
			res.Granted++
		}
	}

	j.logger().Info("monthly accrual run complete",
		"month", month.Format("2006-01"),
		"granted", res.Granted,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

// BootstrapNewHire applies the one-time grant for an employee created
// mid-month. No-op unless the date of joining is in the current month
// and on or before the cutoff day. Subject to the same employee+month
// idempotency as the regular run.
func (j *MonthlyAccrual) BootstrapNewHire(ctx context.Context, emp *Employee) error {
	now := j.now()
	doj := emp.DateOfJoining
	if doj.Year() != now.Year() || doj.Month() != now.Month() || doj.Day() > BootstrapCutoffDay {
		return nil
	}

	err := j.grantMonth(ctx, emp.ID, MonthOf(now))
	if errors.Is(err, ErrDuplicateAccrual) {
		return nil
	}
	return err
}

// grantMonth inserts the entry and applies the balance grant as one
// atomic unit per employee.
func (j *MonthlyAccrual) grantMonth(ctx context.Context, id EmployeeID, month time.Time) error {
	grant := j.grant()
	entry := &AccrualEntry{
		ID:         EntryID(uuid.NewString()),
		EmployeeID: id,
		Month:      month,
		Amount:     grant,
		CreatedAt:  j.now(),
	}

	return j.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return s.AdjustBalance(ctx, id, grant)
	})
}

// =============================================================================
// ACCRUAL ADMINISTRATION
// =============================================================================

// OverrideEntry rewrites an entry's amount and adjusts the employee's
// live balance by the delta, keeping the cached projection consistent.
func (j *MonthlyAccrual) OverrideEntry(ctx context.Context, id EntryID, amount decimal.Decimal) (*AccrualEntry, error) {
	entry, err := j.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	delta := amount.Sub(entry.Amount)
	err = j.Store.WithTx(ctx, func(s Store) error {
		if err := s.UpdateEntryAmount(ctx, id, amount); err != nil {
			return err
		}
		return s.AdjustBalance(ctx, entry.EmployeeID, delta)
	})
	if err != nil {
		return nil, err
	}

	entry.Amount = amount
	return entry, nil
}

// CreateManualEntry records an administrative grant for a given month
// and increments the live balance. Amount must be at least 1. A month
// that already has an entry must be changed through OverrideEntry
// instead.
func (j *MonthlyAccrual) CreateManualEntry(ctx context.Context, id EmployeeID, month time.Time, amount decimal.Decimal) (*AccrualEntry, error) {
	if amount.LessThan(decimal.NewFromInt(1)) {
		return nil, &ValidationError{Field: "amount", Message: "must be greater than or equal to 1"}
	}

	entry := &AccrualEntry{
		ID:         EntryID(uuid.NewString()),
		EmployeeID: id,
		Month:      MonthOf(month),
		Amount:     amount,
		CreatedAt:  j.now(),
	}

	err := j.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return s.AdjustBalance(ctx, id, amount)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (j *MonthlyAccrual) grant() decimal.Decimal {
	if j.Grant.IsZero() {
		return DefaultMonthlyGrant
	}
	return j.Grant
}

func (j *MonthlyAccrual) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now().UTC()
}

func (j *MonthlyAccrual) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
