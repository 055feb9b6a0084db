package authz

import (
	"context"
	"time"

	"github.com/lattice-graph/lattice/pkg/acl"
	"github.com/lattice-graph/lattice/pkg/cache"
	"github.com/lattice-graph/lattice/pkg/group"
	"github.com/lattice-graph/lattice/pkg/observability"
)

// Config holds evaluator tunables
type Config struct {
	// EffectiveGroupsTTL bounds staleness of cached effective-group sets
	EffectiveGroupsTTL time.Duration

	// MaxInListSize is the accessible-ACL cardinality above which list
	// queries fall back to client-side filtering
	MaxInListSize int

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// DefaultMaxInListSize caps the IN-list a list filter will emit. Above it an
// unbounded IN-list degrades query planning and transport cost, so filtering
// moves client-side.
const DefaultMaxInListSize = 1000

// Evaluator answers permission questions: which groups a user effectively
// belongs to, which ACLs grant them a permission, and whether a specific
// resource ACL admits them. Group resolution goes through the cache layer;
// everything else reads the store directly, because the cache is never
// authoritative for a security decision beyond group membership.
type Evaluator struct {
	acls    *acl.Store
	groups  *group.Store
	cache   *cache.Client
	ttl     time.Duration
	maxIn   int
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewEvaluator creates a permission evaluator. A nil cache client disables
// caching; every resolution then recomputes.
func NewEvaluator(acls *acl.Store, groups *group.Store, cacheClient *cache.Client, cfg Config) *Evaluator {
	if cfg.MaxInListSize <= 0 {
		cfg.MaxInListSize = DefaultMaxInListSize
	}
	if cfg.EffectiveGroupsTTL <= 0 {
		cfg.EffectiveGroupsTTL = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NopMetrics()
	}
	return &Evaluator{
		acls:    acls,
		groups:  groups,
		cache:   cacheClient,
		ttl:     cfg.EffectiveGroupsTTL,
		maxIn:   cfg.MaxInListSize,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// EffectiveGroups returns the transitive closure of the user's group
// memberships, cache-aside. An empty user id (unauthenticated caller) has no
// groups.
func (e *Evaluator) EffectiveGroups(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}

	compute := func(ctx context.Context) ([]string, error) {
		start := time.Now()
		groups, err := e.groups.EffectiveGroups(ctx, userID)
		if err != nil {
			return nil, err
		}
		e.metrics.GroupResolutionDuration.Observe(time.Since(start).Seconds())
		e.metrics.EffectiveGroupsSize.Observe(float64(len(groups)))
		return groups, nil
	}

	if e.cache == nil {
		return compute(ctx)
	}
	return e.cache.EffectiveGroups(ctx, userID, e.ttl, compute)
}

// AccessibleACLIDs returns the distinct set of ACL ids that grant the
// requested permission to the user directly or through any effective group.
// Write grants satisfy read requests.
func (e *Evaluator) AccessibleACLIDs(ctx context.Context, userID string, permission acl.Permission) (map[string]struct{}, error) {
	groups, err := e.EffectiveGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids, err := e.acls.IDsGrantedTo(ctx, userID, groups, permission)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// HasPermission decides a single-resource check. A nil ACL reference means
// the resource is public and every caller passes; otherwise the resource's
// ACL must be in the caller's accessible set.
func (e *Evaluator) HasPermission(ctx context.Context, resourceACLID *string, userID string, permission acl.Permission) (bool, error) {
	start := time.Now()

	if resourceACLID == nil {
		e.observeCheck(permission, true, start)
		return true, nil
	}

	accessible, err := e.AccessibleACLIDs(ctx, userID, permission)
	if err != nil {
		return false, err
	}

	_, ok := accessible[*resourceACLID]
	e.observeCheck(permission, ok, start)
	return ok, nil
}

func (e *Evaluator) observeCheck(permission acl.Permission, allowed bool, start time.Time) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	e.metrics.PermissionChecksTotal.WithLabelValues(string(permission), outcome).Inc()
	e.metrics.PermissionCheckDuration.WithLabelValues(string(permission)).Observe(time.Since(start).Seconds())
}
