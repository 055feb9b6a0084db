package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the lattice core
type Metrics struct {
	// Permission evaluation metrics
	PermissionChecksTotal   *prometheus.CounterVec
	PermissionCheckDuration *prometheus.HistogramVec
	ListFilterFallbacks     prometheus.Counter

	// Group resolution metrics
	GroupResolutionDuration prometheus.Histogram
	EffectiveGroupsSize     prometheus.Histogram

	// Cache metrics
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	CacheWriteErrorsTotal *prometheus.CounterVec
	MembershipVersionBumps prometheus.Counter

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Versioned resource metrics
	VersionAppendsTotal  *prometheus.CounterVec
	VersionChainWalks    prometheus.Counter
	VersionAppendConflicts prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_permission_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"permission", "outcome"},
		),
		PermissionCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lattice_permission_check_duration_seconds",
				Help:    "Permission check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"permission"},
		),
		ListFilterFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_list_filter_fallbacks_total",
				Help: "List queries that exceeded the IN-list threshold and fell back to client-side filtering",
			},
		),
		GroupResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lattice_group_resolution_duration_seconds",
				Help:    "Effective-group resolution duration in seconds (cache misses only)",
				Buckets: prometheus.DefBuckets,
			},
		),
		EffectiveGroupsSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lattice_effective_groups_size",
				Help:    "Number of groups in a resolved effective-group set",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		CacheWriteErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_cache_write_errors_total",
				Help: "Cache writes that failed and were dropped",
			},
			[]string{"cache"},
		),
		MembershipVersionBumps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_membership_version_bumps_total",
				Help: "Global membership version counter increments",
			},
		),
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lattice_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation"},
		),
		VersionAppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_version_appends_total",
				Help: "Rows appended to version chains",
			},
			[]string{"table", "kind"},
		),
		VersionChainWalks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_version_chain_walks_total",
				Help: "Latest lookups that required walking a version chain",
			},
		),
		VersionAppendConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_version_append_conflicts_total",
				Help: "Version appends rejected by the conditional latest-flag update",
			},
		),
	}

	registry.MustRegister(
		m.PermissionChecksTotal,
		m.PermissionCheckDuration,
		m.ListFilterFallbacks,
		m.GroupResolutionDuration,
		m.EffectiveGroupsSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheWriteErrorsTotal,
		m.MembershipVersionBumps,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.VersionAppendsTotal,
		m.VersionChainWalks,
		m.VersionAppendConflicts,
	)

	return m
}

// NopMetrics returns a metrics set backed by an unexported registry. Useful
// for tests and for wiring components without a metrics endpoint.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Handler returns an HTTP handler exposing the given registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveStorageOperation records a storage operation with its duration
func (m *Metrics) ObserveStorageOperation(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.StorageErrorsTotal.WithLabelValues(operation).Inc()
	}
	m.StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
