package acl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

type principalKey struct {
	typ PrincipalType
	id  string
}

// Deduplicate reduces an entry list to its effective permission set: exact
// duplicates are removed, and a read entry is dropped for any principal that
// also holds a write entry. The hash must represent what the set grants, not
// the literal input list, so the write-implies-read collapse is part of the
// canonical form.
func Deduplicate(entries []Entry) []Entry {
	writers := make(map[principalKey]bool, len(entries))
	for _, e := range entries {
		if e.Permission == PermissionWrite {
			writers[principalKey{e.PrincipalType, e.PrincipalID}] = true
		}
	}

	seen := make(map[Entry]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if seen[e] {
			continue
		}
		if e.Permission == PermissionRead && writers[principalKey{e.PrincipalType, e.PrincipalID}] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// ComputeHash returns the canonical hash of an entry set: entries sorted by
// (principal_type, principal_id, permission), serialized deterministically,
// and digested with sha256. Order of the input does not affect the result.
func ComputeHash(entries []Entry) string {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PrincipalType != b.PrincipalType {
			return a.PrincipalType < b.PrincipalType
		}
		if a.PrincipalID != b.PrincipalID {
			return a.PrincipalID < b.PrincipalID
		}
		return a.Permission < b.Permission
	})

	var sb strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&sb, "%s:%s:%s\n", e.PrincipalType, e.PrincipalID, e.Permission)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// CanonicalHash deduplicates and hashes in one step. This is the digest the
// store keys ACL rows by.
func CanonicalHash(entries []Entry) string {
	return ComputeHash(Deduplicate(entries))
}
