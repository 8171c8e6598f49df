// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health checks.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("organization_id", orgID).Info("permission check failed")
//
// Request-scoped logging picks up request and user ids from the context:
//
//	observability.FromContext(r.Context()).Warn("session lookup failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordAuthzDecision("exercise", "deny", "not_a_member")
//
// All Record* helpers are safe on a nil *Metrics so components can run unmetered.
//
// # Tracing
//
//	ctx, span := observability.StartSpan(ctx, "status.create")
//	defer func() { observability.EndSpan(span, err) }()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(serveMux, checker)
package observability
