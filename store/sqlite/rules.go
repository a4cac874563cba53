package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timekeeping/engine"
	"github.com/warp/timekeeping/reconcile"
)

// =============================================================================
// RULES FACET - calculation rule persistence
// =============================================================================
// Rule selection happens outside the engine; the engine only reads the
// active rule. SetActive still keeps the one-active invariant honest by
// deactivating the previous rule in the same transaction.

// Rules is the calculation rule persistence facet.
type Rules struct {
	s *Store
	q querier
}

// Rules returns the rule persistence facet.
func (s *Store) Rules() *Rules { return &Rules{s: s, q: s.db} }

const ruleColumns = `id, workspace_id, title, working_days, working_hours,
	week_days, is_active, is_overtime`

// SaveRule inserts or updates a rule. Activation goes through SetActive.
func (r *Rules) SaveRule(ctx context.Context, rule reconcile.CalculationRule) error {
	weekDays, _ := json.Marshal(rule.WeekDays)
	query := `
		INSERT INTO calculation_rules
		(id, workspace_id, title, working_days, working_hours, week_days,
		 is_active, is_overtime, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			working_days = excluded.working_days,
			working_hours = excluded.working_hours,
			week_days = excluded.week_days,
			is_overtime = excluded.is_overtime
	`
	_, err := r.q.ExecContext(ctx, query,
		rule.ID, rule.WorkspaceID, rule.Title, rule.WorkingDays,
		rule.WorkingHours.String(), string(weekDays), rule.IsOvertime,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// SetActive atomically makes the given rule the workspace's single active
// rule, deactivating whichever rule was active before.
func (r *Rules) SetActive(ctx context.Context, workspaceID, ruleID string) error {
	return r.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE calculation_rules SET is_active = 0 WHERE workspace_id = ?`,
			workspaceID); err != nil {
			return fmt.Errorf("failed to deactivate rules: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE calculation_rules SET is_active = 1 WHERE id = ? AND workspace_id = ?`,
			ruleID, workspaceID)
		if err != nil {
			return fmt.Errorf("failed to activate rule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return engine.NotFound("rule", ruleID)
		}
		return nil
	})
}

// GetRule returns a rule by id, or nil.
func (r *Rules) GetRule(ctx context.Context, id string) (*reconcile.CalculationRule, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM calculation_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ActiveRule returns the workspace's active rule, or nil when none is set.
func (r *Rules) ActiveRule(ctx context.Context, workspaceID string) (*reconcile.CalculationRule, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM calculation_rules WHERE workspace_id = ? AND is_active = 1`,
		workspaceID)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns a workspace's rules.
func (r *Rules) ListRules(ctx context.Context, workspaceID string) ([]reconcile.CalculationRule, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM calculation_rules WHERE workspace_id = ? ORDER BY title ASC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []reconcile.CalculationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (reconcile.CalculationRule, error) {
	var (
		rule         reconcile.CalculationRule
		workingHours string
		weekDays     string
	)
	err := row.Scan(&rule.ID, &rule.WorkspaceID, &rule.Title, &rule.WorkingDays,
		&workingHours, &weekDays, &rule.IsActive, &rule.IsOvertime)
	if err != nil {
		return rule, err
	}
	rule.WorkingHours, _ = decimal.NewFromString(workingHours)
	json.Unmarshal([]byte(weekDays), &rule.WeekDays)
	return rule, nil
}
