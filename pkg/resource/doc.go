// Package resource stores protected resources as append-only version chains.
//
// A logical resource is a chain of immutable rows. Creating a resource
// writes version 1; every update, delete, or restore appends a new row whose
// previous_version_id points at the row it supersedes, and flips the old
// row's is_latest flag in the same transaction. Deletes are soft: the
// tombstone row carries the properties forward with is_deleted set, and a
// restore appends another row clearing it, so history survives both.
//
// The flip is conditional on the old row still being latest. Under a
// concurrent append exactly one transaction's UPDATE matches; the other sees
// zero rows affected and returns a Conflict, and a partial unique index on
// previous_version_id enforces the same single-successor invariant in the
// schema. Chains therefore never fork.
//
// Callers may hold any historical id. FindLatest resolves it to the current
// row with a direct is_latest lookup, falling back to a forward chain walk,
// and AllVersions reconstructs the full chain ordered by version.
//
// Diff compares the property maps of two versions by canonical JSON, so
// structurally equal nested values compare equal regardless of source.
package resource
