/*
days_test.go - Unit tests for business-day math

Fixed calendar used throughout:
  Mon 2026-01-05 .. Fri 2026-01-09 is a full work week;
  Sat 2026-01-10 / Sun 2026-01-11 is the weekend after it.
*/
package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// BUSINESS DAY COUNTING
// =============================================================================

func TestBusinessDays_FullWeek(t *testing.T) {
	// GIVEN: Monday through Friday
	// WHEN: Counting business days
	// THEN: 5
	got := BusinessDays(date(2026, time.January, 5), date(2026, time.January, 9))
	assert.Equal(t, 5, got)
}

func TestBusinessDays_SpanningWeekend(t *testing.T) {
	// GIVEN: Monday through the following Tuesday (9 calendar days)
	// WHEN: Counting business days
	// THEN: 7 (weekend excluded)
	got := BusinessDays(date(2026, time.January, 5), date(2026, time.January, 13))
	assert.Equal(t, 7, got)
}

func TestBusinessDays_WeekendOnly(t *testing.T) {
	got := BusinessDays(date(2026, time.January, 10), date(2026, time.January, 11))
	assert.Equal(t, 0, got)
}

func TestBusinessDays_SameDay(t *testing.T) {
	got := BusinessDays(date(2026, time.January, 5), date(2026, time.January, 5))
	assert.Equal(t, 1, got)
}

func TestBusinessDays_InvertedRange(t *testing.T) {
	got := BusinessDays(date(2026, time.January, 9), date(2026, time.January, 5))
	assert.Equal(t, 0, got)
}

// =============================================================================
// DAY TYPE RULES
// =============================================================================

func TestCountDays_SingleWeekday(t *testing.T) {
	days, end := CountDays(DaySingle, date(2026, time.January, 5), date(2026, time.January, 5))
	assert.True(t, days.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, date(2026, time.January, 5), end)
}

func TestCountDays_SingleWeekend_CountsZero(t *testing.T) {
	// GIVEN: A single-day request starting on a Saturday
	// WHEN: Counting days
	// THEN: 0 days; the request itself remains valid, it just costs nothing
	days, _ := CountDays(DaySingle, date(2026, time.January, 10), date(2026, time.January, 10))
	assert.True(t, days.IsZero())
}

func TestCountDays_HalfDay_ForcesEndDate(t *testing.T) {
	// GIVEN: A half-day request with a mismatched end date
	// WHEN: Counting days
	// THEN: 0.5 days, and the end date collapses to the start date
	for _, dt := range []LeaveDayType{DayFirstHalf, DaySecondHalf} {
		days, end := CountDays(dt, date(2026, time.January, 5), date(2026, time.January, 9))
		assert.True(t, days.Equal(decimal.NewFromFloat(0.5)), "day type %s", dt)
		assert.Equal(t, date(2026, time.January, 5), end, "day type %s", dt)
	}
}

func TestCountDays_Multiple_ExcludesWeekend(t *testing.T) {
	days, end := CountDays(DayMultiple, date(2026, time.January, 5), date(2026, time.January, 13))
	assert.True(t, days.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, date(2026, time.January, 13), end)
}
