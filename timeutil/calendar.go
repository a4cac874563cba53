package timeutil

import "time"

// =============================================================================
// CALENDAR HELPERS - Pure date arithmetic, all UTC
// =============================================================================

// WeekdaySet is the set of working weekdays named by a calculation rule.
type WeekdaySet map[time.Weekday]bool

// NewWeekdaySet builds a set from a list of weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

// ParseWeekdays converts weekday names ("Monday", ...) to a set.
// Unknown names are reported so callers can reject bad rule configs.
func ParseWeekdays(names []string) (WeekdaySet, bool) {
	byName := map[string]time.Weekday{
		"Sunday": time.Sunday, "Monday": time.Monday, "Tuesday": time.Tuesday,
		"Wednesday": time.Wednesday, "Thursday": time.Thursday,
		"Friday": time.Friday, "Saturday": time.Saturday,
	}
	set := make(WeekdaySet, len(names))
	for _, n := range names {
		wd, ok := byName[n]
		if !ok {
			return nil, false
		}
		set[wd] = true
	}
	return set, true
}

// Names returns the weekday names in the set, in Sunday-first order.
func (s WeekdaySet) Names() []string {
	var names []string
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if s[wd] {
			names = append(names, wd.String())
		}
	}
	return names
}

// CountWeekdays returns how many calendar days in the given month fall on
// one of the given weekdays. This is the "ideal working days" input to
// monthly reconciliation.
func CountWeekdays(year int, month time.Month, days WeekdaySet) int {
	count := 0
	for d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC); d.Month() == month; d = d.AddDate(0, 0, 1) {
		if days[d.Weekday()] {
			count++
		}
	}
	return count
}

// DaysInMonth returns the number of calendar days in a month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the half-open interval [start, end) covering the month.
func MonthBounds(year int, month time.Month) (start, end time.Time) {
	start = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// DayOf truncates an instant to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool { return DayOf(a).Equal(DayOf(b)) }
