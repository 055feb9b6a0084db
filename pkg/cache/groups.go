package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	membershipVersionKey = "lattice:membership:version"
	effectiveGroupsCache = "effective_groups"
)

// MembershipVersion reads the global membership version counter. The counter
// starts at zero; any group-membership mutation bumps it, which invalidates
// every derived effective-group key at once without per-user fan-out.
func (c *Client) MembershipVersion(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, membershipVersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read membership version: %w", err)
	}
	return v, nil
}

// BumpMembershipVersion increments the global membership version counter.
// Called on every membership mutation; the TTL on derived keys bounds
// staleness for any mutation path that misses the bump.
func (c *Client) BumpMembershipVersion(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, membershipVersionKey).Err(); err != nil {
		return fmt.Errorf("failed to bump membership version: %w", err)
	}
	c.metrics.MembershipVersionBumps.Inc()
	return nil
}

// EffectiveGroupsKey builds the cache key for a user's effective-group set.
// The key embeds the membership version read at call time, so a version bump
// orphans all previous keys in one step.
func EffectiveGroupsKey(version int64, userID string) string {
	return fmt.Sprintf("lattice:effgroups:%d:%s", version, userID)
}

// EffectiveGroups returns the user's cached effective-group set, computing
// and caching it on a miss. The ttl bounds staleness independently of the
// version counter.
func (c *Client) EffectiveGroups(ctx context.Context, userID string, ttl time.Duration, compute func(ctx context.Context) ([]string, error)) ([]string, error) {
	version, err := c.MembershipVersion(ctx)
	if err != nil {
		return nil, err
	}

	key := EffectiveGroupsKey(version, userID)
	return GetOrCompute(ctx, c, effectiveGroupsCache, key, ttl, compute)
}
