package group

import (
	"context"
)

// WouldCreateCycle reports whether adding newMember as a group member of
// parent would close a loop in the containment graph. True when the two are
// the same group, when newMember already sits above parent (walking parent's
// ancestor chain reaches it), or when the walk hits MaxNestingDepth, which is
// treated conservatively as a cycle to bound the traversal.
func (s *Store) WouldCreateCycle(ctx context.Context, parent, newMember string) (bool, error) {
	if parent == newMember {
		return true, nil
	}
	visited := make(map[string]bool)
	return s.ancestorsReach(ctx, parent, newMember, visited, 0)
}

func (s *Store) ancestorsReach(ctx context.Context, from, target string, visited map[string]bool, depth int) (bool, error) {
	if depth >= MaxNestingDepth {
		return true, nil
	}
	if visited[from] {
		return false, nil
	}
	visited[from] = true

	parents, err := s.ParentsOf(ctx, from)
	if err != nil {
		return false, err
	}
	for _, p := range parents {
		if p == target {
			return true, nil
		}
		reached, err := s.ancestorsReach(ctx, p, target, visited, depth+1)
		if err != nil {
			return false, err
		}
		if reached {
			return true, nil
		}
	}
	return false, nil
}

// NestingDepth returns the depth of the deepest child chain under the group.
// A group with no group members has depth 1. Each group is visited at most
// once, so a pre-existing cycle in stored data terminates instead of looping.
func (s *Store) NestingDepth(ctx context.Context, groupID string) (int, error) {
	visited := make(map[string]bool)
	return s.depthBelow(ctx, groupID, visited)
}

func (s *Store) depthBelow(ctx context.Context, groupID string, visited map[string]bool) (int, error) {
	if visited[groupID] {
		return 0, nil
	}
	visited[groupID] = true

	children, err := s.ChildrenOf(ctx, groupID)
	if err != nil {
		return 0, err
	}

	deepest := 0
	for _, c := range children {
		d, err := s.depthBelow(ctx, c, visited)
		if err != nil {
			return 0, err
		}
		if d > deepest {
			deepest = d
		}
	}
	return deepest + 1, nil
}

// heightAbove returns the length of the longest ancestor chain above the
// group, with the same visited-set protection as NestingDepth.
func (s *Store) heightAbove(ctx context.Context, groupID string) (int, error) {
	visited := make(map[string]bool)
	return s.heightAboveVisited(ctx, groupID, visited)
}

func (s *Store) heightAboveVisited(ctx context.Context, groupID string, visited map[string]bool) (int, error) {
	if visited[groupID] {
		return 0, nil
	}
	visited[groupID] = true

	parents, err := s.ParentsOf(ctx, groupID)
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, p := range parents {
		h, err := s.heightAboveVisited(ctx, p, visited)
		if err != nil {
			return 0, err
		}
		if h+1 > highest {
			highest = h + 1
		}
	}
	return highest, nil
}

// wouldExceedDepth reports whether nesting member under parent would push the
// combined chain past MaxNestingDepth: ancestors above the parent, the parent
// itself, plus the member's own subtree.
func (s *Store) wouldExceedDepth(ctx context.Context, parent, member string) (bool, error) {
	above, err := s.heightAbove(ctx, parent)
	if err != nil {
		return false, err
	}
	below, err := s.NestingDepth(ctx, member)
	if err != nil {
		return false, err
	}
	return above+1+below > MaxNestingDepth, nil
}

// EffectiveGroups computes the transitive closure of a user's memberships:
// direct groups first, then every group reachable upward through "contains"
// edges. A visited set both deduplicates and tolerates stored cycles. This is
// the cache-miss computation behind the cache layer's effective-group keys.
func (s *Store) EffectiveGroups(ctx context.Context, userID string) ([]string, error) {
	direct, err := s.DirectGroupsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(direct))
	queue := make([]string, 0, len(direct))
	for _, g := range direct {
		if !visited[g] {
			visited[g] = true
			queue = append(queue, g)
		}
	}

	var result []string
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		result = append(result, g)

		parents, err := s.ParentsOf(ctx, g)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}

	return result, nil
}
