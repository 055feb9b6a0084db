// Package authz evaluates permissions against canonical ACLs and the group
// containment graph.
//
// A check resolves in three steps: the caller's effective groups (cached),
// the set of ACL ids granting the requested permission to the caller or any
// of those groups, and a membership test against the resource's ACL
// reference. A nil reference means public and short-circuits to allow.
// Write implies read throughout.
//
// For list queries, BuildListFilter emits a SQL restriction when the
// accessible set is small enough, and signals a client-side fallback
// (FilterByPermission over an over-fetched page) when it is not. Both paths
// admit exactly the same rows.
package authz
