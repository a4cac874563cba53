package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/tracking"
)

// =============================================================================
// ENTRIES FACET - implements tracking.EntryStore
// =============================================================================

// Entries is the entry persistence facet.
type Entries struct {
	s *Store
	q querier
}

// Entries returns the facet implementing tracking.EntryStore.
func (s *Store) Entries() *Entries { return &Entries{s: s, q: s.db} }

// WithTx runs fn against a transactional view. Must not be nested.
func (e *Entries) WithTx(ctx context.Context, fn func(tx tracking.EntryStore) error) error {
	return e.s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&Entries{s: e.s, q: tx})
	})
}

const entryColumns = `id, user_id, project_id, title, start_time, end_time,
	duration_seconds, billable, created_at, updated_at`

// InsertEntry adds an entry. A second running entry for the same user is
// rejected by the partial unique index and reported as a conflict.
func (e *Entries) InsertEntry(ctx context.Context, entry tracking.Entry) error {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := e.q.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		nullString(entry.ProjectID),
		entry.Title,
		entry.StartTime.UTC().Format(time.RFC3339),
		formatNullableTime(entry.EndTime),
		entry.DurationSeconds,
		entry.Billable,
		entry.CreatedAt.UTC().Format(time.RFC3339),
		entry.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) && constraintTarget(err, "entries.user_id") {
			return engine.Conflictf("a timer is already running for this user")
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// UpdateEntry rewrites an entry row.
func (e *Entries) UpdateEntry(ctx context.Context, entry tracking.Entry) error {
	query := `
		UPDATE entries
		SET project_id = ?, title = ?, start_time = ?, end_time = ?,
		    duration_seconds = ?, billable = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := e.q.ExecContext(ctx, query,
		nullString(entry.ProjectID),
		entry.Title,
		entry.StartTime.UTC().Format(time.RFC3339),
		formatNullableTime(entry.EndTime),
		entry.DurationSeconds,
		entry.Billable,
		entry.UpdatedAt.UTC().Format(time.RFC3339),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.NotFound("entry", entry.ID)
	}
	return nil
}

// DeleteEntry removes an entry row.
func (e *Entries) DeleteEntry(ctx context.Context, id string) error {
	res, err := e.q.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.NotFound("entry", id)
	}
	return nil
}

// GetEntry returns an entry by id, or nil.
func (e *Entries) GetEntry(ctx context.Context, id string) (*tracking.Entry, error) {
	row := e.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// RunningEntry returns the user's open entry, or nil.
func (e *Entries) RunningEntry(ctx context.Context, userID string) (*tracking.Entry, error) {
	row := e.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE user_id = ? AND end_time IS NULL`, userID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// EntriesForDay returns the user's closed entries starting on the given
// UTC calendar day, ordered by start time.
func (e *Entries) EntriesForDay(ctx context.Context, userID string, day time.Time) ([]tracking.Entry, error) {
	day = day.UTC()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE user_id = ? AND end_time IS NOT NULL
		  AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC
	`
	rows, err := e.q.QueryContext(ctx, query, userID,
		dayStart.Format(time.RFC3339), dayEnd.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (tracking.Entry, error) {
	var (
		entry     tracking.Entry
		projectID sql.NullString
		startTime string
		endTime   sql.NullString
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&entry.ID, &entry.UserID, &projectID, &entry.Title,
		&startTime, &endTime, &entry.DurationSeconds, &entry.Billable,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return entry, err
	}

	entry.ProjectID = projectID.String
	entry.StartTime, _ = time.Parse(time.RFC3339, startTime)
	if endTime.Valid {
		t, _ := time.Parse(time.RFC3339, endTime.String)
		entry.EndTime = &t
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return entry, nil
}

func collectEntries(rows *sql.Rows) ([]tracking.Entry, error) {
	var entries []tracking.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
