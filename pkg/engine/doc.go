// Package engine assembles the authorization core into a single facade.
//
// The engine owns one versioned store per protected resource kind plus the
// shared ACL store, group graph, permission evaluator, and cache client, and
// exposes the checked operations a routing layer calls: create, get, update,
// delete, restore, history, and list for resources; create and membership
// management for groups.
//
// Every operation takes the verified caller identity as a plain user id. An
// empty id is an unauthenticated caller, who can read public resources and
// nothing else. Denials surface as Forbidden errors after the target has
// been resolved; the engine does not invent not-found answers to hide
// resources the caller can see exist through other means.
//
// Membership mutations bump the global membership version counter after the
// edge commits, which orphans every cached effective-group key at once. The
// bump is best effort; the cache TTL bounds staleness when it is lost.
package engine
