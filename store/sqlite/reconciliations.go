package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/reconcile"
	"github.com/warp/timekeeping/timeutil"
	"github.com/warp/timekeeping/tracking"
)

// =============================================================================
// RECONCILIATIONS FACET - implements reconcile.Store
// =============================================================================

// Reconciliations is the reconciliation persistence facet.
type Reconciliations struct {
	s *Store
	q querier
}

// Reconciliations returns the facet implementing reconcile.Store.
func (s *Store) Reconciliations() *Reconciliations { return &Reconciliations{s: s, q: s.db} }

// WithTx runs fn against a transactional view. Must not be nested.
func (r *Reconciliations) WithTx(ctx context.Context, fn func(tx reconcile.Store) error) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&Reconciliations{s: r.s, q: tx})
	})
}

// EntriesForMonth returns the user's closed entries starting in the month.
func (r *Reconciliations) EntriesForMonth(ctx context.Context, userID string, year int, month time.Month) ([]tracking.Entry, error) {
	start, end := timeutil.MonthBounds(year, month)

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE user_id = ? AND end_time IS NOT NULL
		  AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC
	`
	rows, err := r.q.QueryContext(ctx, query, userID,
		start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// LeavesForMonth returns the user's approved leave days in the month.
func (r *Reconciliations) LeavesForMonth(ctx context.Context, userID, workspaceID string, year int, month time.Month) ([]reconcile.Leave, error) {
	start, end := timeutil.MonthBounds(year, month)

	query := `
		SELECT id, user_id, workspace_id, date, type_key, paid
		FROM leaves
		WHERE user_id = ? AND workspace_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC
	`
	rows, err := r.q.QueryContext(ctx, query, userID, workspaceID,
		start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	var leaves []reconcile.Leave
	for rows.Next() {
		var (
			l    reconcile.Leave
			date string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.WorkspaceID, &date, &l.TypeKey, &l.Paid); err != nil {
			return nil, fmt.Errorf("failed to scan leave: %w", err)
		}
		l.Date, _ = time.Parse(time.RFC3339, date)
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// SaveLeave ingests an approved leave day (upsert on user/date/type).
func (r *Reconciliations) SaveLeave(ctx context.Context, l reconcile.Leave) error {
	query := `
		INSERT INTO leaves (id, user_id, workspace_id, date, type_key, paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date, type_key) DO UPDATE SET
			paid = excluded.paid
	`
	_, err := r.q.ExecContext(ctx, query,
		l.ID, l.UserID, l.WorkspaceID,
		timeutil.DayOf(l.Date).Format(time.RFC3339),
		l.TypeKey, l.Paid,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save leave: %w", err)
	}
	return nil
}

// GetReconciliation returns the record for a key, or nil.
func (r *Reconciliations) GetReconciliation(ctx context.Context, key reconcile.Key) (*reconcile.MonthlyReconciliation, error) {
	query := `
		SELECT id, user_id, workspace_id, year, month,
		       ideal_working_days, ideal_working_hours, user_working_seconds,
		       user_working_days, total_leaves, paid_leaves, unpaid_leaves,
		       overtime_seconds, undertime_seconds, overridden, overtime_enabled,
		       is_saved, version
		FROM reconciliations
		WHERE user_id = ? AND workspace_id = ? AND year = ? AND month = ?
	`
	row := r.q.QueryRowContext(ctx, query, key.UserID, key.WorkspaceID, key.Year, int(key.Month))

	var (
		rec            reconcile.MonthlyReconciliation
		month          int
		idealHours     string
		workedSeconds  int64
		workingDays    string
		overtimeSecs   int64
		undertimeSecs  int64
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.WorkspaceID, &rec.Year, &month,
		&rec.IdealWorkingDays, &idealHours, &workedSeconds,
		&workingDays, &rec.TotalLeaves, &rec.PaidLeaves, &rec.UnpaidLeaves,
		&overtimeSecs, &undertimeSecs, &rec.Overridden, &rec.OvertimeEnabled,
		&rec.Saved, &rec.Version,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reconciliation: %w", err)
	}

	rec.Month = time.Month(month)
	rec.IdealWorkingHours, _ = decimal.NewFromString(idealHours)
	rec.UserWorkingHours = timeutil.FromSeconds(workedSeconds)
	rec.UserWorkingDays, _ = decimal.NewFromString(workingDays)
	rec.Overtime = timeutil.FromSeconds(overtimeSecs)
	rec.Undertime = timeutil.FromSeconds(undertimeSecs)
	return &rec, nil
}

// PutDraft inserts or overwrites the record for its key.
func (r *Reconciliations) PutDraft(ctx context.Context, rec reconcile.MonthlyReconciliation) error {
	query := `
		INSERT INTO reconciliations
		(id, user_id, workspace_id, year, month, ideal_working_days,
		 ideal_working_hours, user_working_seconds, user_working_days,
		 total_leaves, paid_leaves, unpaid_leaves, overtime_seconds,
		 undertime_seconds, overridden, overtime_enabled, is_saved, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, workspace_id, year, month) DO UPDATE SET
			ideal_working_days = excluded.ideal_working_days,
			ideal_working_hours = excluded.ideal_working_hours,
			user_working_seconds = excluded.user_working_seconds,
			user_working_days = excluded.user_working_days,
			total_leaves = excluded.total_leaves,
			paid_leaves = excluded.paid_leaves,
			unpaid_leaves = excluded.unpaid_leaves,
			overtime_seconds = excluded.overtime_seconds,
			undertime_seconds = excluded.undertime_seconds,
			overridden = excluded.overridden,
			overtime_enabled = excluded.overtime_enabled,
			version = excluded.version,
			updated_at = excluded.updated_at
		WHERE reconciliations.is_saved = 0
	`
	_, err := r.q.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.WorkspaceID, rec.Year, int(rec.Month),
		rec.IdealWorkingDays,
		rec.IdealWorkingHours.String(),
		rec.UserWorkingHours.TotalSeconds(),
		rec.UserWorkingDays.String(),
		rec.TotalLeaves, rec.PaidLeaves, rec.UnpaidLeaves,
		rec.Overtime.TotalSeconds(),
		rec.Undertime.TotalSeconds(),
		rec.Overridden, rec.OvertimeEnabled, rec.Saved, rec.Version,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put reconciliation draft: %w", err)
	}
	return nil
}

// MarkSaved flips is_saved if and only if it is still unset.
func (r *Reconciliations) MarkSaved(ctx context.Context, key reconcile.Key) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE reconciliations SET is_saved = 1, updated_at = ?
		WHERE user_id = ? AND workspace_id = ? AND year = ? AND month = ? AND is_saved = 0
	`, time.Now().UTC().Format(time.RFC3339),
		key.UserID, key.WorkspaceID, key.Year, int(key.Month))
	if err != nil {
		return false, fmt.Errorf("failed to mark reconciliation saved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreditOvertime appends an overtime credit inside the current view.
func (r *Reconciliations) CreditOvertime(ctx context.Context, userID string, amount timeutil.HMS, idempotencyKey string) error {
	return creditOvertime(ctx, r.q, userID, amount, idempotencyKey)
}

// GrantLeave appends a leave grant inside the current view.
func (r *Reconciliations) GrantLeave(ctx context.Context, userID, leaveType string, days decimal.Decimal, idempotencyKey string) error {
	return grantLeave(ctx, r.q, userID, leaveType, days, idempotencyKey)
}
