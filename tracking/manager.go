/*
manager.go - Entry lifecycle state machine

PURPOSE:
  Owns the per-user state machine Idle -> Running -> Idle (via stop),
  with Running -> Running via resume (which stops the current timer
  first, as a single compound transition) and out-of-band edits to
  closed entries that never touch the running state.

OPERATIONS:
  Start      fails with a conflict if a timer is already running
  Stop       fails with not-found if nothing is running
  Resume     copies project/title from a closed entry, restarts the clock
  AddManual  inserts an already-closed entry, overlap-checked
  Edit       re-validates a closed entry against the overlap rule,
             excluding the entry itself
  Delete     removes an entry (the only way entries are ever deleted)

CONCURRENCY:
  Every mutation runs inside EntryStore.WithTx so the read-then-write
  overlap and single-running checks are atomic per user.
*/
package tracking

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/timeutil"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// EntryStore is the persistence collaborator for entries. WithTx must give
// read-then-write atomicity: checks and writes issued through the callback
// store either all commit or none do.
type EntryStore interface {
	WithTx(ctx context.Context, fn func(tx EntryStore) error) error

	InsertEntry(ctx context.Context, e Entry) error
	UpdateEntry(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id string) error
	GetEntry(ctx context.Context, id string) (*Entry, error)

	// RunningEntry returns the user's open entry, or nil.
	RunningEntry(ctx context.Context, userID string) (*Entry, error)

	// EntriesForDay returns the user's closed entries whose start falls on
	// the given UTC calendar day, ordered by start time.
	EntriesForDay(ctx context.Context, userID string, day time.Time) ([]Entry, error)
}

// Observer is notified after every successful mutation. The reconciliation
// calculator uses this for cache invalidation; recomputation is also safe
// to run lazily, so a no-op observer is fine.
type Observer interface {
	EntryChanged(userID string, day time.Time)
}

type noopObserver struct{}

func (noopObserver) EntryChanged(string, time.Time) {}

// =============================================================================
// MANAGER
// =============================================================================

// Manager drives the entry lifecycle.
type Manager struct {
	store    EntryStore
	clock    timeutil.Clock
	observer Observer
}

// NewManager creates a Manager. clock may be nil (system clock);
// observer may be nil (no-op).
func NewManager(store EntryStore, clock timeutil.Clock, observer Observer) *Manager {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Manager{store: store, clock: clock, observer: observer}
}

// Start opens a new running entry for the user. Fails with a conflict if
// the user already has a running entry; the caller must stop first.
func (m *Manager) Start(ctx context.Context, userID, projectID, title string, billable bool) (*Entry, error) {
	clean, err := requireTitle(title)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC()
	entry := Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Title:     clean,
		StartTime: now,
		Billable:  billable,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = m.store.WithTx(ctx, func(tx EntryStore) error {
		running, err := tx.RunningEntry(ctx, userID)
		if err != nil {
			return err
		}
		if running != nil {
			return engine.Conflictf("a timer is already running for this user")
		}
		return tx.InsertEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	m.observer.EntryChanged(userID, timeutil.DayOf(now))
	return &entry, nil
}

// Stop closes the user's running entry, computing its duration.
func (m *Manager) Stop(ctx context.Context, userID string) (*Entry, error) {
	var stopped Entry
	err := m.store.WithTx(ctx, func(tx EntryStore) error {
		running, err := tx.RunningEntry(ctx, userID)
		if err != nil {
			return err
		}
		if running == nil {
			return engine.NotFound("running entry", "")
		}
		stopped = m.close(*running)
		return tx.UpdateEntry(ctx, stopped)
	})
	if err != nil {
		return nil, err
	}

	m.observer.EntryChanged(userID, timeutil.DayOf(stopped.StartTime))
	return &stopped, nil
}

// Resume restarts the clock from a prior closed entry: any currently
// running entry is stopped first, then a new running entry is created
// with the old entry's project and title. The old entry's duration is
// untouched; this is a restart, not a merge.
func (m *Manager) Resume(ctx context.Context, entryID string) (*Entry, error) {
	now := m.clock.Now().UTC()
	var (
		resumed Entry
		userID  string
	)

	err := m.store.WithTx(ctx, func(tx EntryStore) error {
		source, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if source == nil {
			return engine.NotFound("entry", entryID)
		}
		if source.IsRunning() {
			return engine.Validationf("entry is still running; stop it instead of resuming")
		}
		userID = source.UserID

		// Compound transition: implicit stop of whatever is running.
		running, err := tx.RunningEntry(ctx, source.UserID)
		if err != nil {
			return err
		}
		if running != nil {
			if err := tx.UpdateEntry(ctx, m.close(*running)); err != nil {
				return err
			}
		}

		resumed = Entry{
			ID:        uuid.NewString(),
			UserID:    source.UserID,
			ProjectID: source.ProjectID,
			Title:     source.Title,
			StartTime: now,
			Billable:  source.Billable,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.InsertEntry(ctx, resumed)
	})
	if err != nil {
		return nil, err
	}

	m.observer.EntryChanged(userID, timeutil.DayOf(now))
	return &resumed, nil
}

// ManualEntry is the input for AddManual.
type ManualEntry struct {
	UserID    string
	ProjectID string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Billable  bool
}

// AddManual inserts an already-closed entry after validating the interval
// and the overlap invariant.
func (m *Manager) AddManual(ctx context.Context, in ManualEntry) (*Entry, error) {
	clean, err := requireTitle(in.Title)
	if err != nil {
		return nil, err
	}

	start, end := in.StartTime.UTC(), in.EndTime.UTC()
	now := m.clock.Now().UTC()
	if err := validateInterval(start, end, now, false); err != nil {
		return nil, err
	}

	entry := Entry{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		ProjectID:       in.ProjectID,
		Title:           clean,
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: durationSeconds(start, end),
		Billable:        in.Billable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = m.store.WithTx(ctx, func(tx EntryStore) error {
		if err := m.checkOverlap(ctx, tx, entry, ""); err != nil {
			return err
		}
		return tx.InsertEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	m.observer.EntryChanged(in.UserID, timeutil.DayOf(start))
	return &entry, nil
}

// EntryEdit is the input for Edit. All fields replace the stored values.
type EntryEdit struct {
	StartTime time.Time
	EndTime   time.Time
	Title     string
	ProjectID string
}

// Edit rewrites a closed entry. Same rules as AddManual, plus the new end
// must not be in the future, and the entry itself is excluded from the
// overlap check.
func (m *Manager) Edit(ctx context.Context, entryID string, edit EntryEdit) (*Entry, error) {
	clean, err := requireTitle(edit.Title)
	if err != nil {
		return nil, err
	}

	start, end := edit.StartTime.UTC(), edit.EndTime.UTC()
	now := m.clock.Now().UTC()
	if err := validateInterval(start, end, now, true); err != nil {
		return nil, err
	}

	var updated Entry
	err = m.store.WithTx(ctx, func(tx EntryStore) error {
		existing, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if existing == nil {
			return engine.NotFound("entry", entryID)
		}
		if existing.IsRunning() {
			return engine.Validationf("cannot edit a running entry; stop it first")
		}

		updated = *existing
		updated.StartTime = start
		updated.EndTime = &end
		updated.DurationSeconds = durationSeconds(start, end)
		updated.Title = clean
		updated.ProjectID = edit.ProjectID
		updated.UpdatedAt = now

		if err := m.checkOverlap(ctx, tx, updated, entryID); err != nil {
			return err
		}
		return tx.UpdateEntry(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	m.observer.EntryChanged(updated.UserID, timeutil.DayOf(start))
	return &updated, nil
}

// Delete removes an entry. Entries are never deleted any other way.
func (m *Manager) Delete(ctx context.Context, entryID string) error {
	var userID string
	var day time.Time
	err := m.store.WithTx(ctx, func(tx EntryStore) error {
		existing, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if existing == nil {
			return engine.NotFound("entry", entryID)
		}
		userID, day = existing.UserID, timeutil.DayOf(existing.StartTime)
		return tx.DeleteEntry(ctx, entryID)
	})
	if err != nil {
		return err
	}
	m.observer.EntryChanged(userID, day)
	return nil
}

// Running returns the user's currently running entry, or nil.
func (m *Manager) Running(ctx context.Context, userID string) (*Entry, error) {
	return m.store.RunningEntry(ctx, userID)
}

// ListDay returns the user's closed entries for a calendar day.
func (m *Manager) ListDay(ctx context.Context, userID string, day time.Time) ([]Entry, error) {
	return m.store.EntriesForDay(ctx, userID, timeutil.DayOf(day))
}

// =============================================================================
// VALIDATION
// =============================================================================

func requireTitle(title string) (string, error) {
	clean := SanitizeTitle(title)
	if clean == "" {
		return "", engine.Validationf("title must not be empty")
	}
	return clean, nil
}

func validateInterval(start, end, now time.Time, rejectFutureEnd bool) error {
	if start.After(end) {
		return engine.Validationf("start time must not be after end time")
	}
	if start.After(now) {
		return engine.Validationf("start time must not be in the future")
	}
	if rejectFutureEnd && end.After(now) {
		return engine.Validationf("end time must not be in the future")
	}
	return nil
}

// checkOverlap applies the half-open intersection test against the user's
// closed entries on the candidate's start and end days, excluding excludeID.
func (m *Manager) checkOverlap(ctx context.Context, tx EntryStore, candidate Entry, excludeID string) error {
	days := []time.Time{timeutil.DayOf(candidate.StartTime)}
	if candidate.EndTime != nil && !timeutil.SameDay(candidate.StartTime, *candidate.EndTime) {
		days = append(days, timeutil.DayOf(*candidate.EndTime))
	}

	for _, day := range days {
		existing, err := tx.EntriesForDay(ctx, candidate.UserID, day)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.ID == excludeID || other.IsRunning() {
				continue
			}
			if candidate.Overlaps(other) {
				return engine.Validationf("entries overlap")
			}
		}
	}
	return nil
}

// close stamps an end time on a running entry and computes its duration.
func (m *Manager) close(e Entry) Entry {
	end := m.clock.Now().UTC()
	e.EndTime = &end
	e.DurationSeconds = durationSeconds(e.StartTime, end)
	e.UpdatedAt = end
	return e
}

// durationSeconds rounds the interval to whole seconds, clamped at zero.
func durationSeconds(start, end time.Time) int64 {
	secs := int64(math.Round(end.Sub(start).Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}
