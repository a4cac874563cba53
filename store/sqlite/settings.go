package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/leavegrant"
	"github.com/warp/timekeeping/timeutil"
)

// =============================================================================
// SETTINGS FACET - implements leavegrant.SettingStore
// =============================================================================

// Settings is the auto-add leave setting persistence facet.
type Settings struct {
	s *Store
	q querier
}

// Settings returns the facet implementing leavegrant.SettingStore.
func (s *Store) Settings() *Settings { return &Settings{s: s, q: s.db} }

// WithTx runs fn against a transactional view. Must not be nested.
func (st *Settings) WithTx(ctx context.Context, fn func(tx leavegrant.SettingStore) error) error {
	return st.s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&Settings{s: st.s, q: tx})
	})
}

const settingColumns = `id, workspace_id, leave_type, leaves, recurrence, frequency,
	anchor_day, next_execution_date, last_execution_date, executed, enabled,
	created_at, updated_at`

// InsertSetting adds a setting row.
func (st *Settings) InsertSetting(ctx context.Context, setting leavegrant.Setting) error {
	query := `
		INSERT INTO leave_settings (` + settingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := st.q.ExecContext(ctx, query, settingArgs(setting)...)
	if err != nil {
		if isUniqueConstraintError(err) && constraintTarget(err, "leave_settings.workspace_id") {
			return engine.Conflictf("another setting is already enabled in this workspace")
		}
		return fmt.Errorf("failed to insert setting: %w", err)
	}
	return nil
}

// UpdateSetting rewrites a setting row. The single-enabled partial index
// rejects a write that would enable a second setting in the workspace.
func (st *Settings) UpdateSetting(ctx context.Context, setting leavegrant.Setting) error {
	query := `
		UPDATE leave_settings
		SET leave_type = ?, leaves = ?, recurrence = ?, frequency = ?,
		    anchor_day = ?, next_execution_date = ?, last_execution_date = ?,
		    executed = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := st.q.ExecContext(ctx, query,
		setting.LeaveType,
		setting.Leaves.String(),
		string(setting.Recurrence),
		nullString(string(setting.Frequency)),
		setting.AnchorDay,
		formatNullableTime(setting.NextExecutionDate),
		formatNullableTime(setting.LastExecutionDate),
		setting.Executed,
		setting.Enabled,
		setting.UpdatedAt.UTC().Format(time.RFC3339),
		setting.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) && constraintTarget(err, "leave_settings.workspace_id") {
			return engine.Conflictf("another setting is already enabled in this workspace")
		}
		return fmt.Errorf("failed to update setting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.NotFound("setting", setting.ID)
	}
	return nil
}

// DeleteSetting removes a setting row.
func (st *Settings) DeleteSetting(ctx context.Context, id string) error {
	res, err := st.q.ExecContext(ctx, `DELETE FROM leave_settings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.NotFound("setting", id)
	}
	return nil
}

// GetSetting returns a setting by id, or nil.
func (st *Settings) GetSetting(ctx context.Context, id string) (*leavegrant.Setting, error) {
	row := st.q.QueryRowContext(ctx,
		`SELECT `+settingColumns+` FROM leave_settings WHERE id = ?`, id)
	setting, err := scanSetting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// ListSettings returns all settings in a workspace, newest first.
func (st *Settings) ListSettings(ctx context.Context, workspaceID string) ([]leavegrant.Setting, error) {
	query := `SELECT ` + settingColumns + ` FROM leave_settings
		WHERE workspace_id = ? ORDER BY created_at DESC`
	rows, err := st.q.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()
	return collectSettings(rows)
}

// EnabledSetting returns the workspace's enabled setting, or nil.
func (st *Settings) EnabledSetting(ctx context.Context, workspaceID string) (*leavegrant.Setting, error) {
	row := st.q.QueryRowContext(ctx,
		`SELECT `+settingColumns+` FROM leave_settings WHERE workspace_id = ? AND enabled = 1`,
		workspaceID)
	setting, err := scanSetting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// DueSettings returns enabled settings due on or before today.
func (st *Settings) DueSettings(ctx context.Context, today time.Time) ([]leavegrant.Setting, error) {
	query := `SELECT ` + settingColumns + ` FROM leave_settings
		WHERE enabled = 1 AND next_execution_date IS NOT NULL AND next_execution_date <= ?
		ORDER BY next_execution_date ASC`
	rows, err := st.q.QueryContext(ctx, query,
		timeutil.DayOf(today).Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query due settings: %w", err)
	}
	defer rows.Close()
	return collectSettings(rows)
}

// CreditOvertime appends an overtime credit inside the current view.
func (st *Settings) CreditOvertime(ctx context.Context, userID string, amount timeutil.HMS, idempotencyKey string) error {
	return creditOvertime(ctx, st.q, userID, amount, idempotencyKey)
}

// GrantLeave appends a leave grant inside the current view.
func (st *Settings) GrantLeave(ctx context.Context, userID, leaveType string, days decimal.Decimal, idempotencyKey string) error {
	return grantLeave(ctx, st.q, userID, leaveType, days, idempotencyKey)
}

// =============================================================================
// SCANNING
// =============================================================================

func settingArgs(setting leavegrant.Setting) []any {
	return []any{
		setting.ID,
		setting.WorkspaceID,
		setting.LeaveType,
		setting.Leaves.String(),
		string(setting.Recurrence),
		nullString(string(setting.Frequency)),
		setting.AnchorDay,
		formatNullableTime(setting.NextExecutionDate),
		formatNullableTime(setting.LastExecutionDate),
		setting.Executed,
		setting.Enabled,
		setting.CreatedAt.UTC().Format(time.RFC3339),
		setting.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func scanSetting(row rowScanner) (leavegrant.Setting, error) {
	var (
		setting   leavegrant.Setting
		leaves    string
		frequency sql.NullString
		nextDate  sql.NullString
		lastDate  sql.NullString
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&setting.ID, &setting.WorkspaceID, &setting.LeaveType, &leaves,
		&setting.Recurrence, &frequency, &setting.AnchorDay,
		&nextDate, &lastDate, &setting.Executed, &setting.Enabled,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return setting, err
	}

	setting.Leaves, _ = decimal.NewFromString(leaves)
	setting.Frequency = leavegrant.Frequency(frequency.String)
	if nextDate.Valid {
		t, _ := time.Parse(time.RFC3339, nextDate.String)
		setting.NextExecutionDate = &t
	}
	if lastDate.Valid {
		t, _ := time.Parse(time.RFC3339, lastDate.String)
		setting.LastExecutionDate = &t
	}
	setting.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	setting.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return setting, nil
}

func collectSettings(rows *sql.Rows) ([]leavegrant.Setting, error) {
	var settings []leavegrant.Setting
	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}
