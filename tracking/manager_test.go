package tracking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/store/memory"
	"github.com/warp/timekeeping/tracking"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// stepClock is a manually advanced clock.
type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time          { return c.now }
func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T) (*tracking.Manager, *stepClock) {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)}
	store := memory.New()
	return tracking.NewManager(store.Entries(), clock, nil), clock
}

func at(day, hour, min int) time.Time {
	return time.Date(2024, time.March, day, hour, min, 0, 0, time.UTC)
}

// =============================================================================
// START / STOP
// =============================================================================

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newTestManager(t)

	entry, err := mgr.Start(ctx, "alice", "proj-1", "Write report", true)
	require.NoError(t, err)
	assert.True(t, entry.IsRunning())
	assert.Equal(t, "Write report", entry.Title)
	assert.Equal(t, clock.now, entry.StartTime)

	running, err := mgr.Running(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, entry.ID, running.ID)

	clock.Advance(90 * time.Minute)

	stopped, err := mgr.Stop(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, stopped.IsRunning())
	assert.Equal(t, int64(5400), stopped.DurationSeconds)

	running, err = mgr.Running(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, running)
}

func TestStartWhileRunningConflicts(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.Start(ctx, "alice", "", "First", false)
	require.NoError(t, err)

	_, err = mgr.Start(ctx, "alice", "", "Second", false)
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))

	// A different user is unaffected.
	_, err = mgr.Start(ctx, "bob", "", "Other", false)
	assert.NoError(t, err)
}

func TestStopWithoutRunning(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.Stop(ctx, "alice")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

func TestStartRejectsEmptyTitle(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.Start(ctx, "alice", "", "   ", false)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))

	// Tag-only titles sanitize to empty.
	_, err = mgr.Start(ctx, "alice", "", "<br/>", false)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

// =============================================================================
// RESUME
// =============================================================================

func TestResumeCopiesMetadata(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newTestManager(t)

	original, err := mgr.Start(ctx, "alice", "proj-1", "Review PRs", true)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = mgr.Stop(ctx, "alice")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	resumed, err := mgr.Resume(ctx, original.ID)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, resumed.ID)
	assert.Equal(t, "Review PRs", resumed.Title)
	assert.Equal(t, "proj-1", resumed.ProjectID)
	assert.True(t, resumed.Billable)
	assert.True(t, resumed.IsRunning())
	assert.Equal(t, clock.now, resumed.StartTime)
}

func TestResumeStopsCurrentTimer(t *testing.T) {
	ctx := context.Background()
	mgr, clock := newTestManager(t)

	first, err := mgr.Start(ctx, "alice", "", "First", false)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = mgr.Stop(ctx, "alice")
	require.NoError(t, err)

	_, err = mgr.Start(ctx, "alice", "", "Second", false)
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	// Resume the first entry: the second must be stopped implicitly.
	resumed, err := mgr.Resume(ctx, first.ID)
	require.NoError(t, err)

	running, err := mgr.Running(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, resumed.ID, running.ID)

	day, err := mgr.ListDay(ctx, "alice", clock.now)
	require.NoError(t, err)
	require.Len(t, day, 2)
	for _, e := range day {
		assert.False(t, e.IsRunning())
	}
}

func TestResumeRunningEntryRejected(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	running, err := mgr.Start(ctx, "alice", "", "Open", false)
	require.NoError(t, err)

	_, err = mgr.Resume(ctx, running.ID)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestResumeUnknownEntry(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.Resume(ctx, "nope")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// MANUAL ENTRIES AND OVERLAP
// =============================================================================

func manual(user string, start, end time.Time) tracking.ManualEntry {
	return tracking.ManualEntry{
		UserID:    user,
		Title:     "Manual work",
		StartTime: start,
		EndTime:   end,
	}
}

func TestAddManual(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	entry, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 11, 30)))
	require.NoError(t, err)
	assert.False(t, entry.IsRunning())
	assert.Equal(t, int64(9000), entry.DurationSeconds)

	day, err := mgr.ListDay(ctx, "alice", at(14, 0, 0))
	require.NoError(t, err)
	assert.Len(t, day, 1)
}

func TestAddManualRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 11, 0)))
	require.NoError(t, err)

	// Overlapping interval is rejected.
	_, err = mgr.AddManual(ctx, manual("alice", at(14, 10, 0), at(14, 12, 0)))
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))

	// Same interval for a different user is fine.
	_, err = mgr.AddManual(ctx, manual("bob", at(14, 10, 0), at(14, 12, 0)))
	assert.NoError(t, err)
}

func TestBackToBackEntriesAllowed(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 11, 0)))
	require.NoError(t, err)

	// Half-open intervals: sharing the 11:00 boundary does not overlap.
	_, err = mgr.AddManual(ctx, manual("alice", at(14, 11, 0), at(14, 12, 0)))
	assert.NoError(t, err)
}

func TestAddManualValidatesInterval(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	// start after end
	_, err := mgr.AddManual(ctx, manual("alice", at(14, 12, 0), at(14, 9, 0)))
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))

	// start in the future (clock frozen at March 15, 09:00)
	_, err = mgr.AddManual(ctx, manual("alice", at(16, 9, 0), at(16, 10, 0)))
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

// =============================================================================
// EDIT
// =============================================================================

func TestEdit(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	entry, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 10, 0)))
	require.NoError(t, err)

	updated, err := mgr.Edit(ctx, entry.ID, tracking.EntryEdit{
		StartTime: at(14, 9, 30),
		EndTime:   at(14, 11, 0),
		Title:     "Corrected",
		ProjectID: "proj-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "Corrected", updated.Title)
	assert.Equal(t, "proj-2", updated.ProjectID)
	assert.Equal(t, int64(5400), updated.DurationSeconds)
}

func TestEditExcludesSelfFromOverlapCheck(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	entry, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 10, 0)))
	require.NoError(t, err)

	// Shifting within its own old interval must not conflict with itself.
	_, err = mgr.Edit(ctx, entry.ID, tracking.EntryEdit{
		StartTime: at(14, 9, 15),
		EndTime:   at(14, 9, 45),
		Title:     "Shifted",
	})
	assert.NoError(t, err)
}

func TestEditRejectsOverlapWithOtherEntry(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 10, 0)))
	require.NoError(t, err)
	second, err := mgr.AddManual(ctx, manual("alice", at(14, 11, 0), at(14, 12, 0)))
	require.NoError(t, err)

	_, err = mgr.Edit(ctx, second.ID, tracking.EntryEdit{
		StartTime: at(14, 9, 30),
		EndTime:   at(14, 11, 30),
		Title:     "Overlapping",
	})
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestEditRejectsFutureEnd(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	entry, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 10, 0)))
	require.NoError(t, err)

	// Clock is frozen at March 15, 09:00; March 15, 10:00 is the future.
	_, err = mgr.Edit(ctx, entry.ID, tracking.EntryEdit{
		StartTime: at(15, 8, 0),
		EndTime:   at(15, 10, 0),
		Title:     "Future",
	})
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestEditRunningEntryRejected(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	running, err := mgr.Start(ctx, "alice", "", "Open", false)
	require.NoError(t, err)

	_, err = mgr.Edit(ctx, running.ID, tracking.EntryEdit{
		StartTime: at(14, 9, 0),
		EndTime:   at(14, 10, 0),
		Title:     "Nope",
	})
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	entry, err := mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 10, 0)))
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, entry.ID))

	err = mgr.Delete(ctx, entry.ID)
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))

	// The freed interval can be reused.
	_, err = mgr.AddManual(ctx, manual("alice", at(14, 9, 0), at(14, 10, 0)))
	assert.NoError(t, err)
}
