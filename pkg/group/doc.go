// Package group stores the group containment graph and resolves transitive
// membership.
//
// Groups form a directed graph: a membership edge says "group G contains
// member M", where M is a user (leaf) or another group. Two invariants hold
// at all times and are enforced before an edge is persisted:
//
//   - no cycles: WouldCreateCycle walks the candidate parent's ancestor
//     chain with a visited set; reaching the new member, or reaching
//     MaxNestingDepth, rejects the edge
//   - bounded depth: the combined chain (ancestors above the parent, the
//     parent, the member's own subtree) may not exceed MaxNestingDepth (10)
//
// Rejections surface as Conflict errors; nothing repairs the graph after the
// fact. NestingDepth tolerates pre-existing cycles in stored data by
// visiting each group at most once.
//
// EffectiveGroups computes the full upward closure of a user's memberships
// and is the computation the cache layer memoizes per user.
package group
