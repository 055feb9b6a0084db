package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lattice-graph/lattice/pkg/observability"
)

// Config holds all lattice core configuration
type Config struct {
	// Storage configuration
	Storage StorageConfig

	// Cache configuration
	Cache CacheConfig

	// Authorization configuration
	Authz AuthzConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// StorageConfig holds relational store configuration
type StorageConfig struct {
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration
}

// CacheConfig holds redis cache configuration
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EffectiveGroupsTTL bounds staleness of cached effective-group sets
	// independently of the membership version counter.
	EffectiveGroupsTTL time.Duration

	// DefaultTTL applies to cache entries without a more specific TTL.
	DefaultTTL time.Duration

	// Enabled turns the redis layer off entirely when false; resolution then
	// always recomputes.
	Enabled bool
}

// AuthzConfig holds permission-evaluator tunables
type AuthzConfig struct {
	// MaxInListSize is the accessible-ACL-set cardinality above which list
	// queries fall back to client-side filtering.
	MaxInListSize int

	// MaxNestingDepth is the maximum group nesting depth accepted before a
	// membership edge is persisted.
	MaxNestingDepth int
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			PostgresURL:      getEnv("LATTICE_POSTGRES_URL", ""),
			PostgresMaxConns: getEnvInt("LATTICE_POSTGRES_MAX_CONNS", 25),
			PostgresMinConns: getEnvInt("LATTICE_POSTGRES_MIN_CONNS", 5),
			PostgresTimeout:  getEnvDuration("LATTICE_POSTGRES_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			RedisAddr:          getEnv("LATTICE_REDIS_ADDR", "localhost:6379"),
			RedisPassword:      getEnv("LATTICE_REDIS_PASSWORD", ""),
			RedisDB:            getEnvInt("LATTICE_REDIS_DB", 0),
			EffectiveGroupsTTL: getEnvDuration("LATTICE_EFFECTIVE_GROUPS_TTL", 5*time.Minute),
			DefaultTTL:         getEnvDuration("LATTICE_CACHE_TTL", 15*time.Minute),
			Enabled:            getEnvBool("LATTICE_CACHE_ENABLED", true),
		},
		Authz: AuthzConfig{
			MaxInListSize:   getEnvInt("LATTICE_MAX_IN_LIST_SIZE", 1000),
			MaxNestingDepth: getEnvInt("LATTICE_MAX_NESTING_DEPTH", 10),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("LATTICE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("LATTICE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Storage.PostgresMaxConns < c.Storage.PostgresMinConns {
		return fmt.Errorf("postgres max conns (%d) below min conns (%d)",
			c.Storage.PostgresMaxConns, c.Storage.PostgresMinConns)
	}
	if c.Authz.MaxInListSize <= 0 {
		return fmt.Errorf("max IN-list size must be positive, got %d", c.Authz.MaxInListSize)
	}
	if c.Authz.MaxNestingDepth <= 0 {
		return fmt.Errorf("max nesting depth must be positive, got %d", c.Authz.MaxNestingDepth)
	}
	if c.Cache.Enabled && c.Cache.EffectiveGroupsTTL <= 0 {
		return fmt.Errorf("effective-groups TTL must be positive when cache is enabled")
	}
	return nil
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
