/*
calculator.go - Monthly reconciliation algorithm and save transition

ALGORITHM (per generate):
  1. idealWorkingDays  = calendar days in the month on the rule's weekdays
  2. idealWorkingHours = idealWorkingDays * rule.WorkingHours
  3. userWorkingHours  = sum of closed entry durations in the month
  4. userWorkingDays   = hours/8 rounded to the nearest quarter day (display)
  5. leave counts, split paid/unpaid by the leave type's paid flag
  6. overtime/undertime: days covered by approved leave reduce the
     expected hours before the zero-floored split; with the rule's
     overtime toggle off, the raw signed difference is reported instead
     and no credit ever happens
  7. persist as an unsaved draft; regenerating overwrites the draft

SAVE:
  Confirm is compare-and-set on the saved flag. Exactly one concurrent
  confirm wins; the winner credits the (possibly overridden) overtime to
  the comp-time ledger in the same transaction, keyed by the record id
  and version so a replay cannot double-credit.
*/
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/ledger"
	"github.com/warp/timekeeping/timeutil"
	"github.com/warp/timekeeping/tracking"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is the persistence collaborator for reconciliation. It embeds the
// ledger so the overtime credit commits atomically with the save flag.
type Store interface {
	ledger.Ledger

	WithTx(ctx context.Context, fn func(tx Store) error) error

	// EntriesForMonth returns the user's closed entries whose start time
	// falls within the month.
	EntriesForMonth(ctx context.Context, userID string, year int, month time.Month) ([]tracking.Entry, error)

	// LeavesForMonth returns the user's approved leave days in the month.
	LeavesForMonth(ctx context.Context, userID, workspaceID string, year int, month time.Month) ([]Leave, error)

	GetReconciliation(ctx context.Context, key Key) (*MonthlyReconciliation, error)

	// PutDraft inserts or overwrites the record for its key.
	PutDraft(ctx context.Context, rec MonthlyReconciliation) error

	// MarkSaved flips the saved flag if and only if it is still unset.
	// Returns false when the record was already saved.
	MarkSaved(ctx context.Context, key Key) (bool, error)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes and locks monthly reconciliations.
type Calculator struct {
	store Store
	clock timeutil.Clock
}

// NewCalculator creates a Calculator. clock may be nil (system clock).
func NewCalculator(store Store, clock timeutil.Clock) *Calculator {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Calculator{store: store, clock: clock}
}

// Generate computes the month's figures under the given rule and persists
// them as an unsaved draft, overwriting any previous draft for the key.
// Fails with a conflict once the month has been saved. The active rule is
// an explicit input, never a hidden lookup.
func (c *Calculator) Generate(ctx context.Context, key Key, rule CalculationRule) (*MonthlyReconciliation, error) {
	weekdays, ok := rule.WeekdaySet()
	if !ok {
		return nil, engine.InvalidArgumentf("rule %q has an unknown weekday name", rule.Title)
	}
	if key.Month < time.January || key.Month > time.December {
		return nil, engine.Validationf("month must be between 1 and 12")
	}

	var result MonthlyReconciliation
	err := c.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetReconciliation(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil && existing.Saved {
			return engine.Conflictf("reconciliation for %04d-%02d is already saved", key.Year, key.Month)
		}

		entries, err := tx.EntriesForMonth(ctx, key.UserID, key.Year, key.Month)
		if err != nil {
			return err
		}
		leaves, err := tx.LeavesForMonth(ctx, key.UserID, key.WorkspaceID, key.Year, key.Month)
		if err != nil {
			return err
		}

		result = compute(key, rule, weekdays, entries, leaves)

		if existing != nil {
			result.ID = existing.ID
			result.Version = existing.Version
			// Identical inputs produce an identical draft; only bump the
			// version when the figures actually moved.
			if figuresEqual(*existing, result) && !existing.Overridden {
				return nil
			}
			result.Version = existing.Version + 1
		} else {
			result.ID = uuid.NewString()
			result.Version = 1
		}
		return tx.PutDraft(ctx, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Override replaces the computed overtime/undertime on a draft. Used for
// manual correction before the save transition; rejected once saved.
func (c *Calculator) Override(ctx context.Context, key Key, overtime, undertime timeutil.HMS) (*MonthlyReconciliation, error) {
	var result MonthlyReconciliation
	err := c.store.WithTx(ctx, func(tx Store) error {
		rec, err := tx.GetReconciliation(ctx, key)
		if err != nil {
			return err
		}
		if rec == nil {
			return engine.NotFound("reconciliation", fmt.Sprintf("%04d-%02d", key.Year, key.Month))
		}
		if rec.Saved {
			return engine.Conflictf("reconciliation for %04d-%02d is already saved", key.Year, key.Month)
		}

		rec.Overtime = overtime
		rec.Undertime = undertime
		rec.Overridden = true
		rec.Version++
		result = *rec
		return tx.PutDraft(ctx, *rec)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Confirm locks the month. Compare-and-set on the saved flag: exactly one
// concurrent confirm succeeds, the rest fail with a conflict. The winner
// credits the overtime to the comp-time ledger atomically, keyed by the
// record's id and version so the credit is applied at most once.
func (c *Calculator) Confirm(ctx context.Context, key Key) (*MonthlyReconciliation, error) {
	var result MonthlyReconciliation
	err := c.store.WithTx(ctx, func(tx Store) error {
		rec, err := tx.GetReconciliation(ctx, key)
		if err != nil {
			return err
		}
		if rec == nil {
			return engine.NotFound("reconciliation", fmt.Sprintf("%04d-%02d", key.Year, key.Month))
		}

		saved, err := tx.MarkSaved(ctx, key)
		if err != nil {
			return err
		}
		if !saved {
			return engine.Conflictf("reconciliation for %04d-%02d is already saved", key.Year, key.Month)
		}

		rec.Saved = true
		result = *rec

		if rec.OvertimeEnabled && !rec.Overtime.Negative && !rec.Overtime.IsZero() {
			idemKey := fmt.Sprintf("%s:credit:v%d", rec.ID, rec.Version)
			if err := tx.CreditOvertime(ctx, rec.UserID, rec.Overtime, idemKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns the record for a key, or a not-found error.
func (c *Calculator) Get(ctx context.Context, key Key) (*MonthlyReconciliation, error) {
	rec, err := c.store.GetReconciliation(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, engine.NotFound("reconciliation", fmt.Sprintf("%04d-%02d", key.Year, key.Month))
	}
	return rec, nil
}

// =============================================================================
// THE ALGORITHM
// =============================================================================

var (
	secondsPerHour = decimal.NewFromInt(3600)
	hoursPerDay    = decimal.NewFromInt(8) // display conversion for userWorkingDays
	four           = decimal.NewFromInt(4)
)

func compute(key Key, rule CalculationRule, weekdays timeutil.WeekdaySet, entries []tracking.Entry, leaves []Leave) MonthlyReconciliation {
	idealDays := timeutil.CountWeekdays(key.Year, key.Month, weekdays)
	idealHours := decimal.NewFromInt(int64(idealDays)).Mul(rule.WorkingHours)

	var workedSecs int64
	for _, e := range entries {
		workedSecs += e.DurationSeconds
	}

	paid, unpaid := 0, 0
	for _, l := range leaves {
		if l.Paid {
			paid++
		} else {
			unpaid++
		}
	}
	totalLeaves := paid + unpaid

	rec := MonthlyReconciliation{
		UserID:            key.UserID,
		WorkspaceID:       key.WorkspaceID,
		Year:              key.Year,
		Month:             key.Month,
		IdealWorkingDays:  idealDays,
		IdealWorkingHours: idealHours,
		UserWorkingHours:  timeutil.FromSeconds(workedSecs),
		UserWorkingDays:   quarterDays(workedSecs),
		TotalLeaves:       totalLeaves,
		PaidLeaves:        paid,
		UnpaidLeaves:      unpaid,
		OvertimeEnabled:   rule.IsOvertime,
	}

	idealSecs := idealHours.Mul(secondsPerHour).Round(0).IntPart()

	if rule.IsOvertime {
		// Days covered by approved leave reduce the expected hours, so
		// leave never shows up as missing work and never inflates overtime.
		leaveSecs := decimal.NewFromInt(int64(totalLeaves)).
			Mul(rule.WorkingHours).Mul(secondsPerHour).Round(0).IntPart()
		expectedSecs := idealSecs - leaveSecs
		if expectedSecs < 0 {
			expectedSecs = 0
		}
		rec.Overtime = timeutil.FromSeconds(max64(0, workedSecs-expectedSecs))
		rec.Undertime = timeutil.FromSeconds(max64(0, expectedSecs-workedSecs))
	} else {
		// Raw signed difference, display only.
		rec.Overtime = timeutil.FromSeconds(workedSecs - idealSecs)
		rec.Undertime = timeutil.FromSeconds(idealSecs - workedSecs)
	}

	return rec
}

// quarterDays converts worked seconds to days at quarter-day granularity:
// round(hours/8, nearest 0.25), floored at zero.
func quarterDays(workedSecs int64) decimal.Decimal {
	if workedSecs <= 0 {
		return decimal.Zero
	}
	hours := decimal.NewFromInt(workedSecs).Div(secondsPerHour)
	return hours.Div(hoursPerDay).Mul(four).Round(0).Div(four)
}

func figuresEqual(a, b MonthlyReconciliation) bool {
	return a.IdealWorkingDays == b.IdealWorkingDays &&
		a.IdealWorkingHours.Equal(b.IdealWorkingHours) &&
		a.UserWorkingHours == b.UserWorkingHours &&
		a.UserWorkingDays.Equal(b.UserWorkingDays) &&
		a.TotalLeaves == b.TotalLeaves &&
		a.PaidLeaves == b.PaidLeaves &&
		a.UnpaidLeaves == b.UnpaidLeaves &&
		a.Overtime == b.Overtime &&
		a.Undertime == b.Undertime &&
		a.OvertimeEnabled == b.OvertimeEnabled
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
