package authz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lattice-graph/lattice/pkg/acl"
)

// ListFilter is the access restriction for a list query. When UseFilter is
// true the caller appends Clause (with Args) to its WHERE conditions; when
// false the accessible set was too large for an IN-list and the caller must
// over-fetch and apply FilterByPermission client-side.
type ListFilter struct {
	UseFilter        bool
	Clause           string
	Args             []interface{}
	AccessibleACLIDs map[string]struct{}
}

// ACLCarrier is any row type that exposes its ACL reference. A nil reference
// means the row is public.
type ACLCarrier interface {
	ACLRef() *string
}

// BuildListFilter computes the caller's accessible-ACL set for the requested
// permission and turns it into a SQL restriction on the given column.
// Placeholders are numbered from argOffset+1 so the clause composes with the
// caller's existing bindings.
//
// Three shapes come out:
//
//   - empty accessible set: rows must be public (column IS NULL)
//   - set within MaxInListSize: (column IS NULL OR column IN (...))
//   - set above the threshold: UseFilter=false, caller filters client-side
func (e *Evaluator) BuildListFilter(ctx context.Context, userID string, permission acl.Permission, column string, argOffset int) (*ListFilter, error) {
	accessible, err := e.AccessibleACLIDs(ctx, userID, permission)
	if err != nil {
		return nil, err
	}

	if len(accessible) > e.maxIn {
		e.metrics.ListFilterFallbacks.Inc()
		e.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"size":    len(accessible),
		}).Debug("accessible acl set above IN-list threshold, falling back to client-side filtering")
		return &ListFilter{UseFilter: false, AccessibleACLIDs: accessible}, nil
	}

	if len(accessible) == 0 {
		return &ListFilter{
			UseFilter:        true,
			Clause:           fmt.Sprintf("%s IS NULL", column),
			AccessibleACLIDs: accessible,
		}, nil
	}

	ids := make([]string, 0, len(accessible))
	for id := range accessible {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", argOffset+i+1)
		args[i] = id
	}

	return &ListFilter{
		UseFilter:        true,
		Clause:           fmt.Sprintf("(%s IS NULL OR %s IN (%s))", column, column, strings.Join(placeholders, ", ")),
		Args:             args,
		AccessibleACLIDs: accessible,
	}, nil
}

// FilterByPermission is the client-side counterpart of the IN-clause: it
// admits rows whose ACL reference is nil or present in the accessible set.
// Pure; the input slice is not modified.
func FilterByPermission[T ACLCarrier](rows []T, accessible map[string]struct{}) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		ref := row.ACLRef()
		if ref == nil {
			out = append(out, row)
			continue
		}
		if _, ok := accessible[*ref]; ok {
			out = append(out, row)
		}
	}
	return out
}
