/*
recurrence.go - Next-execution-date computation

RULES:
  once:   the caller-supplied date is used verbatim; it must not be in
          the past at selection time (date-only comparison).
  repeat: start from today with the day-of-month set to the anchor day;
          if that candidate is on or before today, advance one period
          (1/3/6/12 months) and reset the day to the anchor.

CLAMPING:
  When the anchor day exceeds the target month's length (day 31 in a
  30-day month), the date clamps to the last valid day of that month.
  It never rolls into the following month.
*/
package leavegrant

import (
	"time"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/timeutil"
)

// ComputeNextExecutionDate returns the next execution date for a setting.
//
// For once settings, explicitDate is returned verbatim (truncated to its
// calendar day); validation against "today" belongs to ValidateFuture.
// For repeat settings the anchor-day algorithm above applies. An unknown
// frequency or a missing explicit date is an InvalidArgument.
func ComputeNextExecutionDate(today time.Time, recurrence Recurrence, frequency Frequency, anchorDay int, explicitDate *time.Time) (time.Time, error) {
	today = timeutil.DayOf(today)

	switch recurrence {
	case RecurrenceOnce:
		if explicitDate == nil {
			return time.Time{}, engine.InvalidArgumentf("once recurrence requires an explicit date")
		}
		return timeutil.DayOf(*explicitDate), nil

	case RecurrenceRepeat:
		months, ok := frequency.Months()
		if !ok {
			return time.Time{}, engine.InvalidArgumentf("unknown frequency %q", frequency)
		}
		if anchorDay < 1 || anchorDay > 31 {
			return time.Time{}, engine.InvalidArgumentf("anchor day %d out of range", anchorDay)
		}

		candidate := atAnchor(today.Year(), today.Month(), anchorDay)
		if !candidate.After(today) {
			candidate = advance(candidate, months, anchorDay)
		}
		return candidate, nil

	default:
		return time.Time{}, engine.InvalidArgumentf("unknown recurrence %q", recurrence)
	}
}

// NextAfter advances a repeat schedule by one period from the given date,
// re-anchoring on the anchor day. Used after each execution, with the
// execution date as the new starting point.
func NextAfter(from time.Time, frequency Frequency, anchorDay int) (time.Time, error) {
	months, ok := frequency.Months()
	if !ok {
		return time.Time{}, engine.InvalidArgumentf("unknown frequency %q", frequency)
	}
	return advance(timeutil.DayOf(from), months, anchorDay), nil
}

// ValidateFuture reports whether a date is acceptable at selection time.
// Once settings require today or later (date-only); repeat settings are
// always acceptable since the computation guarantees a future date.
func ValidateFuture(today, date time.Time, recurrence Recurrence) bool {
	if recurrence == RecurrenceRepeat {
		return true
	}
	return !timeutil.DayOf(date).Before(timeutil.DayOf(today))
}

// advance moves n months forward from base and re-anchors the day.
func advance(base time.Time, months, anchorDay int) time.Time {
	// AddDate on the first of the month avoids end-of-month rollover
	// before the anchor day is re-applied.
	firstOfTarget := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	return atAnchor(firstOfTarget.Year(), firstOfTarget.Month(), anchorDay)
}

// atAnchor builds the anchored date in a month, clamping to month end.
func atAnchor(year int, month time.Month, anchorDay int) time.Time {
	day := anchorDay
	if last := timeutil.DaysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
