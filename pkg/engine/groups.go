package engine

import (
	"context"

	"github.com/lattice-graph/lattice/pkg/faults"
	"github.com/lattice-graph/lattice/pkg/group"
)

// CreateGroup creates a named group. Group names are globally unique.
func (e *Engine) CreateGroup(ctx context.Context, userID, name, description string) (*group.Group, error) {
	if userID == "" {
		return nil, faults.Forbidden("")
	}
	g, err := e.groups.Create(ctx, name, description, userID)
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"group_id": g.ID,
		"name":     g.Name,
	}).Info("group created")
	return g, nil
}

// GetGroup retrieves a group by id
func (e *Engine) GetGroup(ctx context.Context, id string) (*group.Group, error) {
	return e.groups.Get(ctx, id)
}

// GroupMembers lists the direct members of a group
func (e *Engine) GroupMembers(ctx context.Context, groupID string) ([]group.Membership, error) {
	return e.groups.Members(ctx, groupID)
}

// AddGroupMember adds a user or group to a group. Edges that would close a
// membership cycle or push the nesting depth past its cap are rejected with
// a Conflict before anything is persisted. On success the global membership
// version is bumped so cached effective-group sets stop resolving.
func (e *Engine) AddGroupMember(ctx context.Context, userID, groupID string, memberType group.MemberType, memberID string) error {
	if userID == "" {
		return faults.Forbidden("")
	}
	if err := e.groups.AddMember(ctx, groupID, memberType, memberID, userID); err != nil {
		return err
	}
	e.bumpMembershipVersion(ctx)
	return nil
}

// RemoveGroupMember removes a membership edge and bumps the membership
// version.
func (e *Engine) RemoveGroupMember(ctx context.Context, userID, groupID string, memberType group.MemberType, memberID string) error {
	if userID == "" {
		return faults.Forbidden("")
	}
	if err := e.groups.RemoveMember(ctx, groupID, memberType, memberID); err != nil {
		return err
	}
	e.bumpMembershipVersion(ctx)
	return nil
}

// EffectiveGroups returns the transitive closure of the user's group
// memberships, cached with bounded staleness.
func (e *Engine) EffectiveGroups(ctx context.Context, userID string) ([]string, error) {
	return e.evaluator.EffectiveGroups(ctx, userID)
}

// bumpMembershipVersion invalidates cached effective-group sets. A failed
// bump is logged and dropped; the TTL on derived keys bounds the staleness
// window it leaves behind.
func (e *Engine) bumpMembershipVersion(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.BumpMembershipVersion(ctx); err != nil {
		e.logger.WithError(err).Warn("failed to bump membership version, relying on TTL expiry")
	}
}
