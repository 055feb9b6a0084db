package acl

import (
	"github.com/lattice-graph/lattice/pkg/migrate"
)

// Migrations returns the ACL subsystem schema. The users table is an
// external read-only input owned by the identity system and is not created
// here.
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create acls table",
			SQL: `
				CREATE TABLE IF NOT EXISTS acls (
					id TEXT PRIMARY KEY,
					hash VARCHAR(64) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_acls_hash ON acls(hash);
			`,
		},
		{
			Version:     2,
			Description: "Create acl_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS acl_entries (
					id BIGSERIAL PRIMARY KEY,
					acl_id TEXT NOT NULL REFERENCES acls(id) ON DELETE CASCADE,
					principal_type VARCHAR(10) NOT NULL,
					principal_id TEXT NOT NULL,
					permission VARCHAR(10) NOT NULL,
					UNIQUE(acl_id, principal_type, principal_id, permission)
				);

				CREATE INDEX idx_acl_entries_acl_id ON acl_entries(acl_id);
				CREATE INDEX idx_acl_entries_principal ON acl_entries(principal_type, principal_id);
				CREATE INDEX idx_acl_entries_permission ON acl_entries(permission);
			`,
		},
	}
}
