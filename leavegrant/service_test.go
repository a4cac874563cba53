package leavegrant_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/leavegrant"
	"github.com/warp/timekeeping/ledger"
	"github.com/warp/timekeeping/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*leavegrant.Service, *memory.Memory, *stepClock) {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)}
	store := memory.New()

	ctx := context.Background()
	members := store.Members()
	require.NoError(t, members.SaveMember(ctx, leavegrant.Member{ID: "alice", WorkspaceID: "ws-1", Name: "Alice", Active: true}))
	require.NoError(t, members.SaveMember(ctx, leavegrant.Member{ID: "bob", WorkspaceID: "ws-1", Name: "Bob", Active: true}))
	require.NoError(t, members.SaveMember(ctx, leavegrant.Member{ID: "carol", WorkspaceID: "ws-1", Name: "Carol", Active: false}))

	return leavegrant.NewService(store.Settings(), members, clock), store, clock
}

func monthlySetting() leavegrant.Setting {
	return leavegrant.Setting{
		WorkspaceID: "ws-1",
		LeaveType:   "vacation",
		Leaves:      decimal.RequireFromString("2"),
		Recurrence:  leavegrant.RecurrenceRepeat,
		Frequency:   leavegrant.FrequencyMonth,
		AnchorDay:   15,
	}
}

func grantCount(store *memory.Memory) int {
	count := 0
	for _, tx := range store.Transactions() {
		if tx.Kind == ledger.KindLeaveGrant {
			count++
		}
	}
	return count
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestCreateComputesNextExecution(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	setting, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)

	assert.False(t, setting.Enabled, "new settings start disabled")
	assert.False(t, setting.Executed)
	require.NotNil(t, setting.NextExecutionDate)
	// Today is March 10, anchor 15: still ahead this month.
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *setting.NextExecutionDate)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	cases := []struct {
		name   string
		mutate func(*leavegrant.Setting)
	}{
		{"empty leave type", func(s *leavegrant.Setting) { s.LeaveType = "" }},
		{"zero leaves", func(s *leavegrant.Setting) { s.Leaves = decimal.Zero }},
		{"negative leaves", func(s *leavegrant.Setting) { s.Leaves = decimal.RequireFromString("-1") }},
		{"unknown recurrence", func(s *leavegrant.Setting) { s.Recurrence = "sometimes" }},
		{"unknown frequency", func(s *leavegrant.Setting) { s.Frequency = "weekly" }},
		{"anchor day out of range", func(s *leavegrant.Setting) { s.AnchorDay = 32 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := monthlySetting()
			tc.mutate(&in)
			_, err := svc.Create(ctx, in)
			require.Error(t, err)
			assert.True(t, engine.IsValidation(err))
		})
	}
}

func TestCreateOnceRejectsPastDate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	past := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	in := monthlySetting()
	in.Recurrence = leavegrant.RecurrenceOnce
	in.NextExecutionDate = &past

	_, err := svc.Create(ctx, in)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))

	// Today itself is fine.
	today := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	in.NextExecutionDate = &today
	_, err = svc.Create(ctx, in)
	assert.NoError(t, err)
}

func TestUpdateRecomputesScheduleOnlyWhenChanged(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	setting, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)
	originalNext := *setting.NextExecutionDate

	// Changing only the grant amount keeps the schedule.
	in := *setting
	in.Leaves = decimal.RequireFromString("3")
	updated, err := svc.Update(ctx, in)
	require.NoError(t, err)
	assert.True(t, updated.Leaves.Equal(decimal.RequireFromString("3")))
	require.NotNil(t, updated.NextExecutionDate)
	assert.Equal(t, originalNext, *updated.NextExecutionDate)

	// Changing the anchor day recomputes.
	in = *updated
	in.AnchorDay = 20
	updated, err = svc.Update(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC), *updated.NextExecutionDate)
}

// =============================================================================
// ENABLE / DISABLE
// =============================================================================

func TestEnableSingleSettingPerWorkspace(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)
	second, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)

	_, err = svc.Enable(ctx, first.ID)
	require.NoError(t, err)

	// Enabling a second setting in the workspace conflicts; the first one
	// is never auto-disabled.
	_, err = svc.Enable(ctx, second.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))

	still, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, still.Enabled)

	// Disable the first, then the second can be enabled.
	_, err = svc.Disable(ctx, first.ID)
	require.NoError(t, err)
	_, err = svc.Enable(ctx, second.ID)
	assert.NoError(t, err)
}

func TestEnableDisableStateConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	setting, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)

	_, err = svc.Disable(ctx, setting.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err), "disabling a disabled setting")

	_, err = svc.Enable(ctx, setting.ID)
	require.NoError(t, err)
	_, err = svc.Enable(ctx, setting.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err), "enabling an enabled setting")
}

// =============================================================================
// EXECUTION
// =============================================================================

func TestExecuteDueGrantsToActiveMembers(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	setting, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)
	_, err = svc.Enable(ctx, setting.ID)
	require.NoError(t, err)

	// Nothing due before the anchor day.
	executed, err := svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)

	clock.now = time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC)

	executed, err = svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	// Two active members got a grant; the inactive one did not.
	assert.Equal(t, 2, grantCount(store))

	after, err := svc.Get(ctx, setting.ID)
	require.NoError(t, err)
	require.NotNil(t, after.NextExecutionDate)
	assert.Equal(t, time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC), *after.NextExecutionDate)
	require.NotNil(t, after.LastExecutionDate)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *after.LastExecutionDate)
	assert.True(t, after.Enabled, "repeat settings stay enabled")
}

func TestExecuteDueIsIdempotentPerDay(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	setting, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)
	_, err = svc.Enable(ctx, setting.ID)
	require.NoError(t, err)

	clock.now = time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC)

	_, err = svc.ExecuteDue(ctx)
	require.NoError(t, err)

	// A second run on the same day finds nothing due: the schedule already
	// advanced to next month.
	executed, err := svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)
	assert.Equal(t, 2, grantCount(store))
}

func TestExecuteDueCatchesUpLateRun(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	setting, err := svc.Create(ctx, monthlySetting())
	require.NoError(t, err)
	_, err = svc.Enable(ctx, setting.ID)
	require.NoError(t, err)

	// The trigger was down on the 15th; it comes back on the 18th.
	clock.now = time.Date(2024, time.March, 18, 6, 0, 0, 0, time.UTC)

	executed, err := svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Equal(t, 2, grantCount(store))

	after, err := svc.Get(ctx, setting.ID)
	require.NoError(t, err)
	// Next execution re-anchors from the actual run date.
	assert.Equal(t, time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC), *after.NextExecutionDate)
}

func TestOnceSettingSelfDisablesAfterExecution(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	when := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)
	in := monthlySetting()
	in.Recurrence = leavegrant.RecurrenceOnce
	in.Frequency = ""
	in.AnchorDay = 0
	in.NextExecutionDate = &when

	setting, err := svc.Create(ctx, in)
	require.NoError(t, err)
	_, err = svc.Enable(ctx, setting.ID)
	require.NoError(t, err)

	clock.now = time.Date(2024, time.March, 12, 6, 0, 0, 0, time.UTC)

	executed, err := svc.ExecuteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Equal(t, 2, grantCount(store))

	after, err := svc.Get(ctx, setting.ID)
	require.NoError(t, err)
	assert.True(t, after.Executed)
	assert.False(t, after.Enabled)
	assert.Nil(t, after.NextExecutionDate)

	// An executed once setting cannot be re-enabled.
	_, err = svc.Enable(ctx, setting.ID)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}
