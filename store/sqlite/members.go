package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/timekeeping/leavegrant"
)

// =============================================================================
// MEMBERS FACET - implements leavegrant.MemberStore
// =============================================================================

// Members is the workspace member persistence facet.
type Members struct {
	s *Store
	q querier
}

// Members returns the facet implementing leavegrant.MemberStore.
func (s *Store) Members() *Members { return &Members{s: s, q: s.db} }

// ActiveMembers returns a workspace's active members, ordered by name.
func (m *Members) ActiveMembers(ctx context.Context, workspaceID string) ([]leavegrant.Member, error) {
	query := `
		SELECT id, workspace_id, name, active
		FROM members
		WHERE workspace_id = ? AND active = 1
		ORDER BY name ASC
	`
	rows, err := m.q.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []leavegrant.Member
	for rows.Next() {
		var member leavegrant.Member
		if err := rows.Scan(&member.ID, &member.WorkspaceID, &member.Name, &member.Active); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// SaveMember inserts or updates a member.
func (m *Members) SaveMember(ctx context.Context, member leavegrant.Member) error {
	query := `
		INSERT INTO members (id, workspace_id, name, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active
	`
	_, err := m.q.ExecContext(ctx, query,
		member.ID, member.WorkspaceID, member.Name, member.Active,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}
