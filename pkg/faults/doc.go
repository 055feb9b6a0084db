// Package faults defines the error taxonomy shared by the lattice core.
//
// Four caller-visible classes exist:
//
//	NotFound   - referenced resource/group/ACL chain does not exist
//	Conflict   - operation would violate an invariant
//	Validation - referenced principals do not exist (all reported)
//	Forbidden  - caller lacks the required permission
//
// Callers match with errors.Is against the exported sentinels or with the
// Is* helpers:
//
//	if faults.IsConflict(err) {
//		// map to 409 at the transport layer
//	}
//
// Underlying storage or cache failures are not part of the taxonomy; they
// propagate wrapped with %w so the caller's error boundary sees them as
// dependency faults rather than domain outcomes.
package faults
