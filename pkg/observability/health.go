package observability

import (
	"context"
	"database/sql"
	"time"
)

// Pinger is anything whose connectivity can be probed. The cache client
// satisfies it; using an interface keeps this package free of a dependency
// on the cache layer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker probes the engine's dependencies. The database is required;
// the cache is an accelerator, so a cache failure degrades rather than
// fails the check.
type HealthChecker struct {
	db    *sql.DB
	cache Pinger
}

// NewHealthChecker creates a health checker. cache may be nil when the
// redis layer is disabled.
func NewHealthChecker(db *sql.DB, cache Pinger) *HealthChecker {
	return &HealthChecker{db: db, cache: cache}
}

// HealthStatus is the overall result of a dependency check
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the health of a single dependency
type DependencyStatus struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency_ms,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Check probes every dependency and aggregates the result
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Dependencies: make(map[string]DependencyStatus),
	}

	dbStatus := h.checkDatabase(ctx)
	status.Dependencies["database"] = dbStatus
	if dbStatus.Status != StatusHealthy {
		status.Status = StatusUnhealthy
	}

	if h.cache != nil {
		cacheStatus := h.checkCache(ctx)
		status.Dependencies["cache"] = cacheStatus
		if cacheStatus.Status != StatusHealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) checkDatabase(ctx context.Context) DependencyStatus {
	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return DependencyStatus{
			Status:  StatusUnhealthy,
			Message: err.Error(),
			Latency: time.Since(start),
		}
	}
	return DependencyStatus{Status: StatusHealthy, Latency: time.Since(start)}
}

func (h *HealthChecker) checkCache(ctx context.Context) DependencyStatus {
	start := time.Now()
	if err := h.cache.Ping(ctx); err != nil {
		return DependencyStatus{
			Status:  StatusDegraded,
			Message: err.Error(),
			Latency: time.Since(start),
		}
	}
	return DependencyStatus{Status: StatusHealthy, Latency: time.Since(start)}
}
