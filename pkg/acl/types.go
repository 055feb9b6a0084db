package acl

import (
	"time"
)

// PrincipalType identifies what kind of principal an entry grants to
type PrincipalType string

const (
	PrincipalUser  PrincipalType = "user"
	PrincipalGroup PrincipalType = "group"
)

// Permission is the permission granted by an entry. Write implies read.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is one of the two supported permissions
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Satisfies reports whether holding p satisfies a request for want
func (p Permission) Satisfies(want Permission) bool {
	if p == want {
		return true
	}
	return p == PermissionWrite && want == PermissionRead
}

// Entry is a single (principal, permission) grant. An ACL's meaning is the
// set of its entries.
type Entry struct {
	PrincipalType PrincipalType `json:"principal_type"`
	PrincipalID   string        `json:"principal_id"`
	Permission    Permission    `json:"permission"`
}

// ACL is a canonical, immutable permission set identified by a content hash.
// Two entry sets that reduce to the same canonical set share one ACL row.
type ACL struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// EnrichedEntry is an entry annotated with principal display information for
// presentation to callers.
type EnrichedEntry struct {
	Entry
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// ValidationResult reports principal-reference validation. Every invalid id
// is listed, not just the first.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
