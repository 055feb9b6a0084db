// Package config loads lattice configuration from environment variables.
//
// All variables use the LATTICE_ prefix. The important ones:
//
//	LATTICE_POSTGRES_URL           - relational store DSN (required in production)
//	LATTICE_REDIS_ADDR             - redis host:port (default localhost:6379)
//	LATTICE_CACHE_ENABLED          - turn the redis layer off (default true)
//	LATTICE_EFFECTIVE_GROUPS_TTL   - staleness bound for cached group sets (default 5m)
//	LATTICE_MAX_IN_LIST_SIZE       - accessible-ACL threshold for list-filter fallback (default 1000)
//	LATTICE_MAX_NESTING_DEPTH      - group nesting limit (default 10)
//	LATTICE_LOG_LEVEL              - debug/info/warn/error (default info)
//
// Durations accept Go syntax ("5m", "90s"). Invalid values silently fall
// back to defaults; cross-field consistency is enforced by Validate.
package config
