/*
Package leavegrant automates recurring leave-balance grants.

PURPOSE:
  An auto-add setting describes a one-shot or repeating grant of leave
  days to every active workspace member. This package computes when a
  setting next executes, enforces the at-most-one-enabled-per-workspace
  invariant, and owns the execution contract an external daily trigger
  calls into.

SEE ALSO:
  - recurrence.go: next-execution-date computation
  - service.go: CRUD, enable/disable, ExecuteDue
  - api/scheduler.go: the periodic trigger
*/
package leavegrant

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECURRENCE MODEL
// =============================================================================

// Recurrence is the schedule mode of a setting.
type Recurrence string

const (
	RecurrenceOnce   Recurrence = "once"
	RecurrenceRepeat Recurrence = "repeat"
)

// Valid reports whether the mode is known.
func (r Recurrence) Valid() bool { return r == RecurrenceOnce || r == RecurrenceRepeat }

// Frequency is the cadence of a repeating setting.
type Frequency string

const (
	FrequencyMonth    Frequency = "month"
	FrequencyQuarter  Frequency = "quarter"
	FrequencyHalfYear Frequency = "halfYear"
	FrequencyYear     Frequency = "year"
)

// Months returns the period length in months, and false for an unknown
// frequency. An unknown frequency is a programming error, not user input.
func (f Frequency) Months() (int, bool) {
	switch f {
	case FrequencyMonth:
		return 1, true
	case FrequencyQuarter:
		return 3, true
	case FrequencyHalfYear:
		return 6, true
	case FrequencyYear:
		return 12, true
	default:
		return 0, false
	}
}

// =============================================================================
// SETTING - One auto-add leave balance rule
// =============================================================================

// Setting is a recurring or one-shot leave grant rule. At most one setting
// per workspace may be enabled at any time.
type Setting struct {
	ID          string
	WorkspaceID string
	LeaveType   string          // leave type key granted
	Leaves      decimal.Decimal // number of leave days granted per execution
	Recurrence  Recurrence
	Frequency   Frequency // required iff Recurrence is repeat
	AnchorDay   int       // day-of-period anchor for repeat schedules

	NextExecutionDate *time.Time
	LastExecutionDate *time.Time
	Executed          bool // meaningful only for once settings
	Enabled           bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the setting should execute on the given day.
func (s Setting) Due(today time.Time) bool {
	if !s.Enabled || s.NextExecutionDate == nil {
		return false
	}
	return !s.NextExecutionDate.After(today)
}
