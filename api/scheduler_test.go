/*
scheduler_test.go - Unit tests for period-rollover job firing
*/
package api

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testScheduler(now *time.Time) *Scheduler {
	s := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.CheckInterval = time.Hour
	s.Now = func() time.Time { return *now }
	return s
}

func TestScheduler_MonthlyFiresOncePerRollover(t *testing.T) {
	// GIVEN: A scheduler started mid-January
	// WHEN: The clock crosses into February and two checks run
	// THEN: The monthly job fires exactly once
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	s := testScheduler(&now)

	var fired atomic.Int32
	s.RegisterMonthly("counter", func(context.Context) error {
		fired.Add(1)
		return nil
	})

	s.Start()
	defer s.Stop()

	s.RunNow()
	assert.Equal(t, int32(0), fired.Load(), "no fire within the start month")

	now = time.Date(2026, time.February, 1, 1, 0, 0, 0, time.UTC)
	s.RunNow()
	s.RunNow()
	assert.Equal(t, int32(1), fired.Load())

	now = time.Date(2026, time.March, 1, 1, 0, 0, 0, time.UTC)
	s.RunNow()
	assert.Equal(t, int32(2), fired.Load())
}

func TestScheduler_YearlyBeforeMonthlyAtYearBoundary(t *testing.T) {
	// GIVEN: Both a yearly and a monthly job, started in December
	// WHEN: The clock crosses into January
	// THEN: Both fire, yearly first
	now := time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC)
	s := testScheduler(&now)

	var order []string
	s.RegisterMonthly("monthly", func(context.Context) error {
		order = append(order, "monthly")
		return nil
	})
	s.RegisterYearly("yearly", func(context.Context) error {
		order = append(order, "yearly")
		return nil
	})

	s.Start()
	defer s.Stop()

	now = time.Date(2027, time.January, 1, 1, 0, 0, 0, time.UTC)
	s.RunNow()
	assert.Equal(t, []string{"yearly", "monthly"}, order)
}

func TestScheduler_JobErrorDoesNotStopOthers(t *testing.T) {
	now := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	s := testScheduler(&now)

	var ran atomic.Bool
	s.RegisterMonthly("failing", func(context.Context) error {
		return assert.AnError
	})
	s.RegisterMonthly("healthy", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	s.Start()
	defer s.Stop()

	now = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	s.RunNow()
	assert.True(t, ran.Load())
}
