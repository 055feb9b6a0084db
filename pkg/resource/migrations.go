package resource

import (
	"fmt"

	"github.com/lattice-graph/lattice/pkg/migrate"
)

// Migrations returns the schema for both protected resource tables. The
// partial unique index on previous_version_id backs the append path: even if
// two transactions slip past the conditional latest flip, only one successor
// row per parent can ever commit.
func Migrations() []migrate.Migration {
	var out []migrate.Migration
	version := 1
	for _, table := range []string{TableEntities, TableLinks} {
		out = append(out,
			migrate.Migration{
				Version:     version,
				Description: fmt.Sprintf("create %s table", table),
				SQL: fmt.Sprintf(`
					CREATE TABLE IF NOT EXISTS %s (
						id TEXT PRIMARY KEY,
						version INTEGER NOT NULL,
						previous_version_id TEXT REFERENCES %s(id),
						is_latest BOOLEAN NOT NULL DEFAULT TRUE,
						is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
						acl_id TEXT REFERENCES acls(id),
						created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
						created_by TEXT NOT NULL,
						payload TEXT NOT NULL DEFAULT '{}'
					)
				`, table, table),
			},
			migrate.Migration{
				Version:     version + 1,
				Description: fmt.Sprintf("create %s indexes", table),
				SQL: fmt.Sprintf(`
					CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_prev_version
						ON %s(previous_version_id) WHERE previous_version_id IS NOT NULL;
					CREATE INDEX IF NOT EXISTS idx_%s_latest ON %s(is_latest);
					CREATE INDEX IF NOT EXISTS idx_%s_acl ON %s(acl_id)
				`, table, table, table, table, table, table),
			},
		)
		version += 2
	}
	return out
}
