/*
Package reconcile compares a user's logged time against working-time
policy for a calendar month.

PURPOSE:
  Given the workspace's active calculation rule and the user's closed
  entries and approved leaves for a month, compute ideal vs. actual
  hours and the overtime/undertime split. A generated month is a draft
  until it is confirmed; confirming locks it forever and credits the
  overtime to the user's comp-time ledger exactly once.

KEY INVARIANTS:
  - Generate is idempotent: re-running for the same key overwrites the
    unsaved draft byte-for-byte given identical inputs.
  - A saved month is terminal: further generates, overrides and confirms
    are rejected with a conflict.
  - The confirm transition is compare-and-set on the saved flag;
    concurrent confirms produce exactly one success and one credit.

SEE ALSO:
  - calculator.go: the algorithm and the save transition
  - store/sqlite/reconciliations.go: persistence, CAS on is_saved
*/
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/timeutil"
)

// =============================================================================
// CALCULATION RULE - Organization-wide working-time policy
// =============================================================================

// CalculationRule is a workspace's working-time policy. Exactly one rule
// per workspace is active at a time; this engine only reads the active
// rule, it is passed in explicitly rather than looked up globally.
type CalculationRule struct {
	ID           string
	WorkspaceID  string
	Title        string
	WorkingDays  int             // days per week, 1-7
	WorkingHours decimal.Decimal // hours per working day
	WeekDays     []string        // weekday names, e.g. "Monday"
	IsActive     bool
	IsOvertime   bool // whether overtime is computed (and credited) at all
}

// WeekdaySet parses the rule's weekday names. ok is false on a bad name.
func (r CalculationRule) WeekdaySet() (timeutil.WeekdaySet, bool) {
	return timeutil.ParseWeekdays(r.WeekDays)
}

// =============================================================================
// LEAVE - Approved leave day feeding the reconciliation
// =============================================================================

// Leave is one approved leave day. Paid mirrors the leave type's paid flag.
type Leave struct {
	ID          string
	UserID      string
	WorkspaceID string
	Date        time.Time
	TypeKey     string
	Paid        bool
}

// =============================================================================
// MONTHLY RECONCILIATION - One record per (user, workspace, month, year)
// =============================================================================

// Key identifies a reconciliation record.
type Key struct {
	UserID      string
	WorkspaceID string
	Year        int
	Month       time.Month
}

// MonthlyReconciliation is the per-user, per-month comparison of actual
// vs. ideal hours. Once Saved is true the record is immutable; the
// overtime value may only be replaced (overridden) while still a draft.
type MonthlyReconciliation struct {
	ID          string
	UserID      string
	WorkspaceID string
	Year        int
	Month       time.Month

	IdealWorkingDays  int
	IdealWorkingHours decimal.Decimal
	UserWorkingHours  timeutil.HMS
	UserWorkingDays   decimal.Decimal // display only, quarter-day granularity

	TotalLeaves  int
	PaidLeaves   int
	UnpaidLeaves int

	Overtime   timeutil.HMS
	Undertime  timeutil.HMS
	Overridden bool

	// OvertimeEnabled mirrors the rule's overtime toggle at generate time.
	// When false the overtime/undertime figures are raw signed differences
	// for display and confirming never credits the ledger.
	OvertimeEnabled bool

	Saved   bool
	Version int // bumped on every draft write; part of the credit idempotency key
}

// Key returns the record's identifying tuple.
func (r MonthlyReconciliation) Key() Key {
	return Key{UserID: r.UserID, WorkspaceID: r.WorkspaceID, Year: r.Year, Month: r.Month}
}
