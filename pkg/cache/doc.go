// Package cache is the redis-backed acceleration layer for group resolution
// and other derived reads.
//
// # Record format
//
// Every record is an envelope stamping the payload with SchemaVersion. A
// mismatched stamp reads as a miss, so incompatible payload shapes across
// deployments degrade to recomputation instead of corruption.
//
// # Invalidation
//
// Effective-group results are cached per user under a key embedding the
// global membership version counter. Any membership mutation bumps the
// counter, invalidating every cached set at once - coarse but O(1), with no
// per-user fan-out. A TTL on each record bounds staleness independently in
// case some mutation path misses the bump.
//
// # Failure policy
//
// Cache writes are fire-and-forget: a failed write is logged and dropped,
// never failing the read it was accelerating. Read failures other than a
// plain miss indicate a dependency outage and propagate.
package cache
