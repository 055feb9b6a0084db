package engine

import (
	"context"

	"github.com/lattice-graph/lattice/pkg/acl"
	"github.com/lattice-graph/lattice/pkg/authz"
	"github.com/lattice-graph/lattice/pkg/faults"
	"github.com/lattice-graph/lattice/pkg/resource"
)

// Version is one step of a resource's history: the row itself plus the
// property delta against its predecessor. The first version carries no diff.
type Version struct {
	Record *resource.Record     `json:"record"`
	Diff   *resource.DiffResult `json:"diff,omitempty"`
}

// CreateResource creates a new protected resource. The ACL entries follow
// the create contract: nil means creator-only write, an empty non-nil slice
// means explicitly public, anything else is validated against existing
// principals and guaranteed to grant the creator write.
func (e *Engine) CreateResource(ctx context.Context, table, userID string, props map[string]interface{}, entries []acl.Entry) (*resource.Record, error) {
	if userID == "" {
		return nil, faults.Forbidden(string(acl.PermissionWrite))
	}
	store, err := e.resourceStore(table)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		result, err := e.acls.ValidatePrincipals(ctx, entries)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, faults.Validation(result.Errors)
		}
	}

	aclID, err := e.acls.CreateForNewResource(ctx, userID, entries)
	if err != nil {
		return nil, err
	}

	rec, err := store.Create(ctx, props, aclID, userID)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"table":   table,
		"id":      rec.ID,
	}).Info("resource created")
	return rec, nil
}

// GetResource returns the current version of the chain containing the given
// id, which may be any historical version id. The caller needs read
// permission on the current version's ACL. A deleted resource is returned
// with its deleted flag set rather than hidden, so callers can offer restore.
func (e *Engine) GetResource(ctx context.Context, table, userID, anyID string) (*resource.Record, error) {
	store, err := e.resourceStore(table)
	if err != nil {
		return nil, err
	}

	rec, err := store.FindLatest(ctx, anyID)
	if err != nil {
		return nil, err
	}
	if err := e.requirePermission(ctx, rec, userID, acl.PermissionRead); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateResource appends a new version with the given properties, keeping
// the current ACL reference. The caller needs write permission; a deleted
// resource must be restored first.
func (e *Engine) UpdateResource(ctx context.Context, table, userID, anyID string, props map[string]interface{}) (*resource.Record, error) {
	store, current, err := e.latestForWrite(ctx, table, userID, anyID)
	if err != nil {
		return nil, err
	}
	return store.Update(ctx, current, props, current.ACLID, userID)
}

// SetResourceACL appends a new version carrying the current properties under
// a different ACL. An empty entry set makes the resource public. The caller
// needs write permission under the current ACL; losing access to a resource
// by replacing its ACL is allowed.
func (e *Engine) SetResourceACL(ctx context.Context, table, userID, anyID string, entries []acl.Entry) (*resource.Record, error) {
	store, current, err := e.latestForWrite(ctx, table, userID, anyID)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		result, err := e.acls.ValidatePrincipals(ctx, entries)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, faults.Validation(result.Errors)
		}
	}

	aclID, err := e.acls.GetOrCreate(ctx, entries)
	if err != nil {
		return nil, err
	}

	return store.Update(ctx, current, current.Properties, aclID, userID)
}

// DeleteResource soft-deletes a resource by appending a tombstone version.
// History is preserved; RestoreResource undoes it.
func (e *Engine) DeleteResource(ctx context.Context, table, userID, anyID string) (*resource.Record, error) {
	store, current, err := e.latestForWrite(ctx, table, userID, anyID)
	if err != nil {
		return nil, err
	}
	return store.Delete(ctx, current.ID, userID)
}

// RestoreResource appends a version clearing the deleted flag
func (e *Engine) RestoreResource(ctx context.Context, table, userID, anyID string) (*resource.Record, error) {
	store, current, err := e.latestForWrite(ctx, table, userID, anyID)
	if err != nil {
		return nil, err
	}
	return store.Restore(ctx, current.ID, userID)
}

// ResourceHistory returns every version of the chain containing the given
// id, oldest first, each annotated with the property diff against its
// predecessor. The caller needs read permission on the current version.
func (e *Engine) ResourceHistory(ctx context.Context, table, userID, anyID string) ([]Version, error) {
	store, err := e.resourceStore(table)
	if err != nil {
		return nil, err
	}

	latest, err := store.FindLatest(ctx, anyID)
	if err != nil {
		return nil, err
	}
	if err := e.requirePermission(ctx, latest, userID, acl.PermissionRead); err != nil {
		return nil, err
	}

	records, err := store.AllVersions(ctx, anyID)
	if err != nil {
		return nil, err
	}

	history := make([]Version, len(records))
	for i, rec := range records {
		history[i] = Version{Record: rec}
		if i > 0 {
			d := resource.Diff(records[i-1].Properties, rec.Properties)
			history[i].Diff = &d
		}
	}
	return history, nil
}

// ListResources returns the current, non-deleted resources the caller can
// read. Small accessible-ACL sets restrict the query with an IN-list; above
// the threshold all rows are fetched and filtered in memory, so both paths
// admit the same rows.
func (e *Engine) ListResources(ctx context.Context, table, userID string) ([]*resource.Record, error) {
	store, err := e.resourceStore(table)
	if err != nil {
		return nil, err
	}

	filter, err := e.evaluator.BuildListFilter(ctx, userID, acl.PermissionRead, "acl_id", 0)
	if err != nil {
		return nil, err
	}

	if filter.UseFilter {
		return store.ListLatest(ctx, filter.Clause, filter.Args)
	}

	rows, err := store.ListLatest(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	return authz.FilterByPermission(rows, filter.AccessibleACLIDs), nil
}

// CheckPermission answers whether the caller holds the permission on the
// resource's current version without fetching its contents.
func (e *Engine) CheckPermission(ctx context.Context, table, userID, anyID string, permission acl.Permission) (bool, error) {
	store, err := e.resourceStore(table)
	if err != nil {
		return false, err
	}
	rec, err := store.FindLatest(ctx, anyID)
	if err != nil {
		return false, err
	}
	return e.evaluator.HasPermission(ctx, rec.ACLID, userID, permission)
}

// latestForWrite resolves the chain's current version and enforces write
// permission on it.
func (e *Engine) latestForWrite(ctx context.Context, table, userID, anyID string) (*resource.Store, *resource.Record, error) {
	store, err := e.resourceStore(table)
	if err != nil {
		return nil, nil, err
	}
	current, err := store.FindLatest(ctx, anyID)
	if err != nil {
		return nil, nil, err
	}
	if err := e.requirePermission(ctx, current, userID, acl.PermissionWrite); err != nil {
		return nil, nil, err
	}
	return store, current, nil
}

func (e *Engine) requirePermission(ctx context.Context, rec *resource.Record, userID string, permission acl.Permission) error {
	ok, err := e.evaluator.HasPermission(ctx, rec.ACLID, userID, permission)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Forbidden(string(permission))
	}
	return nil
}
