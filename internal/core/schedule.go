package core

import "time"

// NextRecurringDate advances a schedule date by one interval using native
// calendar arithmetic. Month and year increments normalize overflowing
// days forward (Jan 31 + 1 month lands on Mar 2 in a leap year, Mar 3
// otherwise); this rollover is pinned by tests and must not be changed to
// last-day clamping.
func NextRecurringDate(from time.Time, interval RecurringInterval) time.Time {
	switch interval {
	case Daily:
		return from.AddDate(0, 0, 1)
	case Weekly:
		return from.AddDate(0, 0, 7)
	case Monthly:
		return from.AddDate(0, 1, 0)
	case Yearly:
		return from.AddDate(1, 0, 0)
	}
	return from
}

// MonthStart returns midnight on the first day of t's month, in t's
// location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// PreviousMonthRange returns the half-open interval [start, end) covering
// the calendar month before now. end is the first instant of the current
// month.
func PreviousMonthRange(now time.Time) (start, end time.Time) {
	end = MonthStart(now)
	start = end.AddDate(0, -1, 0)
	return start, end
}
