// Package migrate runs in-code schema migrations with per-subsystem version
// tracking. Each subsystem (acl, group, resource) declares its migrations as
// a []Migration and applies them through Run; versions already recorded in
// the subsystem's tracking table are skipped.
package migrate
