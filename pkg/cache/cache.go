package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lattice-graph/lattice/pkg/observability"
)

// SchemaVersion stamps every cache record. A record whose stamp does not
// match the reader's expected version is treated as a miss, which protects
// rolling deployments from incompatible payload shapes.
const SchemaVersion = 1

// Client is the redis-backed cache layer. It is a secondary, eventually
// consistent accelerator: content may be stale for up to its TTL or until
// the membership version counter is bumped, and callers must never treat it
// as authoritative beyond group membership.
type Client struct {
	rdb     *redis.Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New wraps an existing redis client
func New(rdb *redis.Client, logger *observability.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Client{rdb: rdb, logger: logger, metrics: metrics}
}

// Connect creates a redis client for the given address and verifies
// connectivity before wrapping it.
func Connect(addr, password string, db int, logger *observability.Logger, metrics *observability.Metrics) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(rdb, logger, metrics), nil
}

// envelope wraps every cached payload with its schema version
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Get reads a record into out. It returns (false, nil) on a miss, which
// includes schema-version mismatches and corrupt payloads; a corrupt record
// is deleted on the way out. Genuine dependency failures propagate.
func (c *Client) Get(ctx context.Context, name, key string, out interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		c.metrics.CacheMissesTotal.WithLabelValues(name).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache read failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil || env.SchemaVersion != SchemaVersion {
		c.rdb.Del(ctx, key)
		c.metrics.CacheMissesTotal.WithLabelValues(name).Inc()
		return false, nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		c.rdb.Del(ctx, key)
		c.metrics.CacheMissesTotal.WithLabelValues(name).Inc()
		return false, nil
	}

	c.metrics.CacheHitsTotal.WithLabelValues(name).Inc()
	return true, nil
}

// Set writes a record with the current schema version stamp. Callers on the
// read path should use put semantics via GetOrCompute instead, where a write
// failure is logged and dropped rather than surfaced.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}
	data, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// put is the fire-and-forget write used on read paths
func (c *Client) put(ctx context.Context, name, key string, value interface{}, ttl time.Duration) {
	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.metrics.CacheWriteErrorsTotal.WithLabelValues(name).Inc()
		c.logger.WithError(err).WithField("key", key).Warn("dropping failed cache write")
	}
}

// Delete removes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Ping checks redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetOrCompute returns the cached value under key, or runs compute and
// caches its result. The cache write is fire-and-forget: a failed write is
// logged and never fails the read it was accelerating. Read failures that
// indicate a dependency outage propagate.
func GetOrCompute[T any](ctx context.Context, c *Client, name, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil {
		hit, err := c.Get(ctx, name, key, &cached)
		if err != nil {
			return cached, err
		}
		if hit {
			return cached, nil
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	if c != nil {
		c.put(ctx, name, key, value, ttl)
	}
	return value, nil
}
