package group

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-graph/lattice/pkg/faults"
)

// Store persists groups and membership edges and guards the containment
// graph's invariants: unique names, no cycles, bounded nesting depth. The
// guards run before an edge is persisted, never after.
type Store struct {
	db *sql.DB
}

// NewStore creates a group store on the given database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new group. A duplicate name is a Conflict.
func (s *Store) Create(ctx context.Context, name, description, createdBy string) (*Group, error) {
	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM groups WHERE name = $1`, name).Scan(&existing)
	if err == nil {
		return nil, faults.Conflict("group name %q already exists", name)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check group name: %w", err)
	}

	g := &Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   createdBy,
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name, description, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, g.ID, g.Name, g.Description, g.CreatedAt, g.CreatedBy); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return g, nil
}

// Get retrieves a group by id
func (s *Store) Get(ctx context.Context, id string) (*Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, created_by
		FROM groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, faults.NotFound("group", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}

// AddMember persists a membership edge. For group members, both graph guards
// (cycle detection and nesting depth) must pass first; a rejection surfaces
// as a Conflict.
func (s *Store) AddMember(ctx context.Context, groupID string, memberType MemberType, memberID, createdBy string) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}

	if memberType == MemberGroup {
		if _, err := s.Get(ctx, memberID); err != nil {
			return err
		}

		cycle, err := s.WouldCreateCycle(ctx, groupID, memberID)
		if err != nil {
			return err
		}
		if cycle {
			return faults.Conflict("adding group %s to group %s would create a membership cycle", memberID, groupID)
		}

		exceeds, err := s.wouldExceedDepth(ctx, groupID, memberID)
		if err != nil {
			return err
		}
		if exceeds {
			return faults.Conflict("adding group %s to group %s would exceed the maximum nesting depth of %d", memberID, groupID, MaxNestingDepth)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, member_type, member_id, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (group_id, member_type, member_id) DO NOTHING
	`, groupID, string(memberType), memberID, time.Now().UTC(), createdBy)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership edge
func (s *Store) RemoveMember(ctx context.Context, groupID string, memberType MemberType, memberID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM group_members
		WHERE group_id = $1 AND member_type = $2 AND member_id = $3
	`, groupID, string(memberType), memberID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return faults.NotFound("membership", fmt.Sprintf("%s/%s:%s", groupID, memberType, memberID))
	}
	return nil
}

// Members lists the direct members of a group
func (s *Store) Members(ctx context.Context, groupID string) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, member_type, member_id, created_at, created_by
		FROM group_members
		WHERE group_id = $1
		ORDER BY member_type, member_id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.GroupID, &m.MemberType, &m.MemberID, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DirectGroupsOfUser returns the groups holding the user as a direct member
func (s *Store) DirectGroupsOfUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id FROM group_members
		WHERE member_type = 'user' AND member_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ParentsOf returns the groups that contain the given group as a member
func (s *Store) ParentsOf(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id FROM group_members
		WHERE member_type = 'group' AND member_id = $1
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parent groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ChildrenOf returns the group members (not users) of the given group
func (s *Store) ChildrenOf(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id FROM group_members
		WHERE member_type = 'group' AND group_id = $1
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query child groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
