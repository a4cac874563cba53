package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/ledger"
	"github.com/warp/timekeeping/reconcile"
	"github.com/warp/timekeeping/store/memory"
	"github.com/warp/timekeeping/timeutil"
	"github.com/warp/timekeeping/tracking"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCalculator(t *testing.T) (*reconcile.Calculator, *memory.Memory) {
	t.Helper()
	store := memory.New()
	clock := timeutil.Frozen(time.Date(2024, time.July, 5, 10, 0, 0, 0, time.UTC))
	return reconcile.NewCalculator(store.Reconciliations(), clock), store
}

// weekdayRule is a Monday-Friday, 8 hours/day rule with overtime enabled.
func weekdayRule() reconcile.CalculationRule {
	return reconcile.CalculationRule{
		ID:           "rule-1",
		WorkspaceID:  "ws-1",
		Title:        "Standard week",
		WorkingDays:  5,
		WorkingHours: decimal.NewFromInt(8),
		WeekDays:     []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		IsActive:     true,
		IsOvertime:   true,
	}
}

func juneKey() reconcile.Key {
	return reconcile.Key{UserID: "alice", WorkspaceID: "ws-1", Year: 2024, Month: time.June}
}

// addWorkedHours inserts closed entries in June 2024 summing to the given
// number of hours.
func addWorkedHours(t *testing.T, store *memory.Memory, hours int64) {
	t.Helper()
	ctx := context.Background()
	entries := store.Entries()

	remaining := hours * 3600
	day := 3 // June 3rd, a Monday
	for remaining > 0 {
		chunk := remaining
		if chunk > 10*3600 {
			chunk = 10 * 3600
		}
		start := time.Date(2024, time.June, day, 8, 0, 0, 0, time.UTC)
		end := start.Add(time.Duration(chunk) * time.Second)
		require.NoError(t, entries.InsertEntry(ctx, tracking.Entry{
			ID:              uuid.NewString(),
			UserID:          "alice",
			Title:           "work",
			StartTime:       start,
			EndTime:         &end,
			DurationSeconds: chunk,
		}))
		remaining -= chunk
		day++
	}
}

func addLeave(t *testing.T, store *memory.Memory, day int, paid bool) {
	t.Helper()
	require.NoError(t, store.Reconciliations().SaveLeave(context.Background(), reconcile.Leave{
		ID:          uuid.NewString(),
		UserID:      "alice",
		WorkspaceID: "ws-1",
		Date:        time.Date(2024, time.June, day, 0, 0, 0, 0, time.UTC),
		TypeKey:     "vacation",
		Paid:        paid,
	}))
}

func creditCount(store *memory.Memory) int {
	count := 0
	for _, tx := range store.Transactions() {
		if tx.Kind == ledger.KindOvertimeCredit {
			count++
		}
	}
	return count
}

// =============================================================================
// GENERATE
// =============================================================================

func TestGenerateIdealMonth(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	// June 2024 has exactly 20 Monday-Friday days: ideal is 160 hours.
	addWorkedHours(t, store, 160)

	rec, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	assert.Equal(t, 20, rec.IdealWorkingDays)
	assert.True(t, rec.IdealWorkingHours.Equal(decimal.NewFromInt(160)))
	assert.Equal(t, timeutil.HMS{Hours: 160}, rec.UserWorkingHours)
	assert.True(t, rec.UserWorkingDays.Equal(decimal.NewFromInt(20)))
	assert.True(t, rec.Overtime.IsZero())
	assert.True(t, rec.Undertime.IsZero())
	assert.Equal(t, 0, rec.TotalLeaves)
	assert.False(t, rec.Saved)
	assert.Equal(t, 1, rec.Version)
}

func TestGenerateOvertime(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 168)

	rec, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	assert.Equal(t, timeutil.HMS{Hours: 8}, rec.Overtime)
	assert.True(t, rec.Undertime.IsZero())
	assert.True(t, rec.OvertimeEnabled)
}

func TestGenerateUndertime(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 152)

	rec, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	assert.True(t, rec.Overtime.IsZero())
	assert.Equal(t, timeutil.HMS{Hours: 8}, rec.Undertime)
}

func TestGenerateLeaveReducesExpectedHours(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	// Two approved leave days cut the expected hours from 160 to 144.
	addLeave(t, store, 6, true)
	addLeave(t, store, 7, false)
	addWorkedHours(t, store, 144)

	rec, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	assert.Equal(t, 2, rec.TotalLeaves)
	assert.Equal(t, 1, rec.PaidLeaves)
	assert.Equal(t, 1, rec.UnpaidLeaves)
	assert.True(t, rec.Overtime.IsZero(), "leave must not show up as missing work")
	assert.True(t, rec.Undertime.IsZero())
}

func TestGenerateOvertimeDisabledReportsRawDifference(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 150)

	rule := weekdayRule()
	rule.IsOvertime = false

	rec, err := calc.Generate(ctx, juneKey(), rule)
	require.NoError(t, err)

	// 150 worked against 160 ideal: a signed -10:00:00 difference.
	assert.Equal(t, timeutil.HMS{Hours: 10, Negative: true}, rec.Overtime)
	assert.Equal(t, timeutil.HMS{Hours: 10}, rec.Undertime)
	assert.False(t, rec.OvertimeEnabled)
}

func TestGenerateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 160)

	first, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)
	second, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	// Unchanged inputs: same id, same version.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Version, second.Version)

	// New entries move the figures and bump the version.
	addWorkedHours(t, store, 8)
	third, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, first.Version+1, third.Version)
	assert.Equal(t, timeutil.HMS{Hours: 8}, third.Overtime)
}

func TestGenerateRejectsBadInputs(t *testing.T) {
	ctx := context.Background()
	calc, _ := newTestCalculator(t)

	key := juneKey()
	key.Month = 13
	_, err := calc.Generate(ctx, key, weekdayRule())
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))

	rule := weekdayRule()
	rule.WeekDays = []string{"Monday", "Funday"}
	_, err = calc.Generate(ctx, juneKey(), rule)
	require.Error(t, err)
	assert.True(t, engine.IsInvalidArgument(err))
}

// =============================================================================
// OVERRIDE
// =============================================================================

func TestOverride(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 160)
	first, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	rec, err := calc.Override(ctx, juneKey(), timeutil.HMS{Hours: 4}, timeutil.HMS{})
	require.NoError(t, err)
	assert.Equal(t, timeutil.HMS{Hours: 4}, rec.Overtime)
	assert.True(t, rec.Overridden)
	assert.Equal(t, first.Version+1, rec.Version)
}

func TestOverrideUnknownMonth(t *testing.T) {
	ctx := context.Background()
	calc, _ := newTestCalculator(t)

	_, err := calc.Override(ctx, juneKey(), timeutil.HMS{Hours: 4}, timeutil.HMS{})
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// CONFIRM - save-once with exactly-once credit
// =============================================================================

func TestConfirmCreditsOvertimeOnce(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 168)
	_, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	rec, err := calc.Confirm(ctx, juneKey())
	require.NoError(t, err)
	assert.True(t, rec.Saved)

	require.Equal(t, 1, creditCount(store))
	txs := store.Transactions()
	assert.Equal(t, "alice", txs[0].UserID)
	assert.Equal(t, int64(8*3600), txs[0].AmountSeconds)

	// A second confirm loses the compare-and-set and must not re-credit.
	_, err = calc.Confirm(ctx, juneKey())
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))
	assert.Equal(t, 1, creditCount(store))
}

func TestConfirmedMonthIsTerminal(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 160)
	_, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)
	_, err = calc.Confirm(ctx, juneKey())
	require.NoError(t, err)

	_, err = calc.Generate(ctx, juneKey(), weekdayRule())
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err), "regenerate after save")

	_, err = calc.Override(ctx, juneKey(), timeutil.HMS{Hours: 1}, timeutil.HMS{})
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err), "override after save")
}

func TestConfirmOverriddenOvertimeIsCredited(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 160)
	_, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)

	_, err = calc.Override(ctx, juneKey(), timeutil.HMS{Hours: 2, Minutes: 30}, timeutil.HMS{})
	require.NoError(t, err)

	_, err = calc.Confirm(ctx, juneKey())
	require.NoError(t, err)

	txs := store.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, int64(2*3600+30*60), txs[0].AmountSeconds)
}

func TestConfirmWithoutOvertimeDoesNotCredit(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 152) // undertime month
	_, err := calc.Generate(ctx, juneKey(), weekdayRule())
	require.NoError(t, err)
	_, err = calc.Confirm(ctx, juneKey())
	require.NoError(t, err)

	assert.Equal(t, 0, creditCount(store))
}

func TestConfirmOvertimeDisabledNeverCredits(t *testing.T) {
	ctx := context.Background()
	calc, store := newTestCalculator(t)

	addWorkedHours(t, store, 170) // would be +10h with overtime enabled

	rule := weekdayRule()
	rule.IsOvertime = false
	_, err := calc.Generate(ctx, juneKey(), rule)
	require.NoError(t, err)
	_, err = calc.Confirm(ctx, juneKey())
	require.NoError(t, err)

	assert.Equal(t, 0, creditCount(store))
}

func TestConfirmUnknownMonth(t *testing.T) {
	ctx := context.Background()
	calc, _ := newTestCalculator(t)

	_, err := calc.Confirm(ctx, juneKey())
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

func TestGetUnknownMonth(t *testing.T) {
	ctx := context.Background()
	calc, _ := newTestCalculator(t)

	_, err := calc.Get(ctx, juneKey())
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}
