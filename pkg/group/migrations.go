package group

import (
	"github.com/lattice-graph/lattice/pkg/migrate"
)

// Migrations returns the group subsystem schema
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id TEXT PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					description TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by TEXT
				);

				CREATE INDEX idx_groups_name ON groups(name);
			`,
		},
		{
			Version:     2,
			Description: "Create group_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_members (
					id BIGSERIAL PRIMARY KEY,
					group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					member_type VARCHAR(10) NOT NULL,
					member_id TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by TEXT,
					UNIQUE(group_id, member_type, member_id)
				);

				CREATE INDEX idx_group_members_group_id ON group_members(group_id);
				CREATE INDEX idx_group_members_member ON group_members(member_type, member_id);
			`,
		},
	}
}
