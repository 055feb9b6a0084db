// Package acl implements the canonical ACL store: content-addressed,
// deduplicated permission sets shared across resources.
//
// # Canonical form
//
// An ACL is a set of (principal, permission) entries. Before hashing, the
// set is reduced to its effective form: exact duplicates are dropped, and
// because write implies read, a read entry is dropped for any principal that
// also holds a write entry. The sha256 of the sorted, reduced set is the
// ACL's identity:
//
//	[{user:u1, write}, {user:u1, read}]  ->  [{user:u1, write}]  ->  hash H
//	[{user:u1, write}]                   ->  [{user:u1, write}]  ->  hash H
//
// Both inputs resolve to the same ACL row via GetOrCreate.
//
// # Lifecycle
//
// ACLs are immutable. Changing a resource's permissions means deriving a new
// entry set, passing it through GetOrCreate, and pointing the resource's next
// version at the returned id. Orphaned ACL rows are kept; any later resource
// with the same effective set reuses them by hash.
//
// A nil ACL reference on a resource means public: every caller passes the
// read check. The empty entry set therefore never gets a row - GetOrCreate
// returns a nil id for it.
//
// # Validation
//
// ValidatePrincipals reports every nonexistent user or group referenced by
// an entry list, as data rather than an error. Store-level failures
// propagate wrapped.
package acl
