/*
accrual_test.go - Unit tests for the monthly accrual job

The idempotency property: re-running the job for the same month changes
each balance exactly once.
*/
package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdesk/leave-engine/leave"
	"github.com/crewdesk/leave-engine/leave/store"
)

func newAccrual(s *store.Memory, now time.Time) *leave.MonthlyAccrual {
	return &leave.MonthlyAccrual{
		Store: s,
		Now:   func() time.Time { return now },
	}
}

// =============================================================================
// MONTHLY RUN
// =============================================================================

func TestMonthlyRun_GrantsActiveEmployees(t *testing.T) {
	// GIVEN: Two active employees and one inactive
	// WHEN: Running the monthly job
	// THEN: Each active employee gains 1.5 and gets a ledger entry;
	//       the inactive employee is untouched
	s := store.NewMemory()
	newEmployee(t, s, "e1", 0)
	newEmployee(t, s, "e2", 2)
	require.NoError(t, s.CreateEmployee(context.Background(), &leave.Employee{
		ID: "e3", Name: "Former", Email: "e3@example.com",
		DateOfJoining: day(2023, time.June, 1), Active: false,
	}))

	j := newAccrual(s, day(2026, time.February, 1))

	res, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Granted)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Failed)

	b1, _ := s.GetBalance(context.Background(), "e1")
	b2, _ := s.GetBalance(context.Background(), "e2")
	b3, _ := s.GetBalance(context.Background(), "e3")
	assert.True(t, b1.LeaveBalance.Equal(dec(1.5)))
	assert.True(t, b2.LeaveBalance.Equal(dec(3.5)))
	assert.True(t, b3.LeaveBalance.IsZero())

	entries, err := s.ListEntries(context.Background(), "e1", time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, day(2026, time.February, 1), entries[0].Month)
	assert.True(t, entries[0].Amount.Equal(dec(1.5)))
}

func TestMonthlyRun_Idempotent(t *testing.T) {
	// GIVEN: A completed run for February
	// WHEN: Running again in the same month
	// THEN: Every employee is skipped and no balance moves
	s := store.NewMemory()
	newEmployee(t, s, "e1", 0)
	j := newAccrual(s, day(2026, time.February, 10))

	_, err := j.Run(context.Background())
	require.NoError(t, err)

	res, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Granted)
	assert.Equal(t, 1, res.Skipped)

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(1.5)))
}

func TestMonthlyRun_NextMonthGrantsAgain(t *testing.T) {
	s := store.NewMemory()
	newEmployee(t, s, "e1", 0)

	_, err := newAccrual(s, day(2026, time.February, 1)).Run(context.Background())
	require.NoError(t, err)
	_, err = newAccrual(s, day(2026, time.March, 1)).Run(context.Background())
	require.NoError(t, err)

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(3)))
}

// =============================================================================
// NEW-HIRE BOOTSTRAP
// =============================================================================

func TestBootstrapNewHire_OnOrBeforeCutoff(t *testing.T) {
	// GIVEN: An employee who joined on the 15th of the current month
	// WHEN: Bootstrapping
	// THEN: Full monthly grant (not prorated)
	s := store.NewMemory()
	emp := &leave.Employee{
		ID: "e1", Name: "New Hire", Email: "e1@example.com",
		DateOfJoining: day(2026, time.February, 15), Active: true,
	}
	require.NoError(t, s.CreateEmployee(context.Background(), emp))

	j := newAccrual(s, day(2026, time.February, 20))
	require.NoError(t, j.BootstrapNewHire(context.Background(), emp))

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(1.5)))
}

func TestBootstrapNewHire_AfterCutoff_NoGrant(t *testing.T) {
	s := store.NewMemory()
	emp := &leave.Employee{
		ID: "e1", Name: "New Hire", Email: "e1@example.com",
		DateOfJoining: day(2026, time.February, 16), Active: true,
	}
	require.NoError(t, s.CreateEmployee(context.Background(), emp))

	j := newAccrual(s, day(2026, time.February, 20))
	require.NoError(t, j.BootstrapNewHire(context.Background(), emp))

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.IsZero())
}

func TestBootstrapNewHire_DifferentMonth_NoGrant(t *testing.T) {
	// Backdated hires never bootstrap; the monthly runs cover them.
	s := store.NewMemory()
	emp := &leave.Employee{
		ID: "e1", Name: "Backdated", Email: "e1@example.com",
		DateOfJoining: day(2026, time.January, 5), Active: true,
	}
	require.NoError(t, s.CreateEmployee(context.Background(), emp))

	j := newAccrual(s, day(2026, time.February, 10))
	require.NoError(t, j.BootstrapNewHire(context.Background(), emp))

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.IsZero())
}

func TestBootstrapThenMonthlyRun_SingleGrant(t *testing.T) {
	// GIVEN: A bootstrapped new hire
	// WHEN: The regular monthly run fires later the same month
	// THEN: The employee is skipped; employee+month grants are unique
	s := store.NewMemory()
	emp := &leave.Employee{
		ID: "e1", Name: "New Hire", Email: "e1@example.com",
		DateOfJoining: day(2026, time.February, 10), Active: true,
	}
	require.NoError(t, s.CreateEmployee(context.Background(), emp))

	j := newAccrual(s, day(2026, time.February, 12))
	require.NoError(t, j.BootstrapNewHire(context.Background(), emp))

	res, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(1.5)))
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

func TestOverrideEntry_AdjustsBalanceByDelta(t *testing.T) {
	// GIVEN: A 1.5 grant on the books
	// WHEN: Overriding the entry to 3
	// THEN: The balance moves by +1.5, not to 3
	s := store.NewMemory()
	newEmployee(t, s, "e1", 4) // 4 includes prior activity beyond the entry
	j := newAccrual(s, day(2026, time.February, 1))

	_, err := j.Run(context.Background())
	require.NoError(t, err)

	entries, err := s.ListEntries(context.Background(), "e1", time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	updated, err := j.OverrideEntry(context.Background(), entries[0].ID, dec(3))
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(dec(3)))

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(7))) // 4 + 1.5 + 1.5 delta
}

func TestOverrideEntry_DownwardDelta(t *testing.T) {
	s := store.NewMemory()
	newEmployee(t, s, "e1", 0)
	j := newAccrual(s, day(2026, time.February, 1))

	_, err := j.Run(context.Background())
	require.NoError(t, err)

	entries, _ := s.ListEntries(context.Background(), "e1", time.Time{})
	require.Len(t, entries, 1)

	_, err = j.OverrideEntry(context.Background(), entries[0].ID, dec(0.5))
	require.NoError(t, err)

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(0.5)))
}

func TestCreateManualEntry_MinimumAmount(t *testing.T) {
	s := store.NewMemory()
	newEmployee(t, s, "e1", 0)
	j := newAccrual(s, day(2026, time.February, 1))

	_, err := j.CreateManualEntry(context.Background(), "e1", day(2026, time.January, 1), dec(0.5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, leave.ErrValidation))

	entry, err := j.CreateManualEntry(context.Background(), "e1", day(2026, time.January, 1), dec(2))
	require.NoError(t, err)
	assert.Equal(t, day(2026, time.January, 1), entry.Month)

	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(2)))
}

func TestCreateManualEntry_DuplicateMonthRefused(t *testing.T) {
	// An occupied month must go through OverrideEntry instead.
	s := store.NewMemory()
	newEmployee(t, s, "e1", 0)
	j := newAccrual(s, day(2026, time.February, 1))

	_, err := j.CreateManualEntry(context.Background(), "e1", day(2026, time.January, 1), dec(2))
	require.NoError(t, err)

	_, err = j.CreateManualEntry(context.Background(), "e1", day(2026, time.January, 1), dec(3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, leave.ErrDuplicateAccrual))

	// The failed insert must not leak a balance grant.
	bal, _ := s.GetBalance(context.Background(), "e1")
	assert.True(t, bal.LeaveBalance.Equal(dec(2)))
}
