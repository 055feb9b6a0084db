// Package observability provides structured logging and Prometheus metrics
// for the lattice core.
//
// # Logging
//
// Logger wraps stdlib slog with a JSON handler and a small fluent API:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("group_id", groupID).Info("membership added")
//
// Context helpers carry the logger and the verified caller identity through
// request handling:
//
//	ctx = observability.WithUserID(ctx, userID)
//	observability.FromContext(ctx).Warn("permission denied")
//
// # Metrics
//
// NewMetrics registers counters and histograms for permission checks, group
// resolution, cache behavior, and version-chain storage on a caller-supplied
// registry. Expose them with Handler:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	http.Handle("/metrics", observability.Handler(registry))
//
// NopLogger and NopMetrics exist so library components never need nil checks
// around their observability hooks.
package observability
