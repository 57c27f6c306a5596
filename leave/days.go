package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY COUNTING - Business-day math for request spans
// =============================================================================

var halfDay = decimal.NewFromFloat(0.5)

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// BusinessDays counts calendar days from start to end inclusive,
// excluding Saturdays and Sundays. Returns 0 for an inverted range.
func BusinessDays(start, end time.Time) int {
	start = dateOnly(start)
	end = dateOnly(end)

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !IsWeekend(d) {
			count++
		}
	}
	return count
}

// CountDays computes the day count for a request span under the given
// day type, and returns the effective end date:
//
//   - multiple:   business days from start to end inclusive
//   - single:     1 if start is a weekday, else 0 (the request is still valid)
//   - first_half / second_half: 0.5, and the end date is forced equal to
//     the start date regardless of the client-supplied value
func CountDays(dayType LeaveDayType, start, end time.Time) (decimal.Decimal, time.Time) {
	switch dayType {
	case DayFirstHalf, DaySecondHalf:
		return halfDay, start
	case DaySingle:
		if IsWeekend(start) {
			return decimal.Zero, end
		}
		return decimal.NewFromInt(1), end
	default: // DayMultiple
		return decimal.NewFromInt(int64(BusinessDays(start, end))), end
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
