/*
Package tracking owns the lifecycle of work-time entries.

PURPOSE:
  Tracks a user's work intervals: start/stop/resume a running timer and
  add or edit closed entries by hand. Two invariants are enforced here:

  1. SINGLE RUNNING: at most one entry per user has no end time.
  2. NO OVERLAP: for a fixed user and calendar day, closed entries'
     [start, end) intervals are pairwise disjoint. Half-open, so
     back-to-back entries sharing a boundary are fine.

  Both checks happen inside a store transaction so that two concurrent
  writes for the same user cannot both slip through; the SQLite store
  backs the single-running invariant with a partial unique index as well.

SEE ALSO:
  - manager.go: the operations (Start/Stop/Resume/AddManual/Edit)
  - store/sqlite/entries.go: persistence and index-level enforcement
*/
package tracking

import (
	"time"
)

// =============================================================================
// ENTRY - A single work interval
// =============================================================================

// Entry is one work interval for a user. EndTime is nil exactly while the
// entry is the user's currently running timer; once set, DurationSeconds
// is authoritative.
type Entry struct {
	ID              string
	UserID          string
	ProjectID       string
	Title           string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int64
	Billable        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsRunning reports whether the entry is still open.
func (e Entry) IsRunning() bool { return e.EndTime == nil }

// Interval returns the half-open [start, end) interval of a closed entry.
// For a running entry the end is the zero time and Overlaps must not be used.
func (e Entry) Interval() (start, end time.Time) {
	start = e.StartTime
	if e.EndTime != nil {
		end = *e.EndTime
	}
	return start, end
}

// Overlaps implements the half-open intersection test:
// a.start < b.end AND b.start < a.end. Both entries must be closed.
func (e Entry) Overlaps(other Entry) bool {
	aStart, aEnd := e.Interval()
	bStart, bEnd := other.Interval()
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
