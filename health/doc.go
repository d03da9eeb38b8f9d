// Package health orchestrates dependency checks behind per-check
// circuit breakers.
//
// # Features
//
//   - Named check registry with per-check timeout, criticality, and weight
//   - Circuit breaker per check: repeated failures short-circuit further
//     probes instead of hammering a failing dependency
//   - Concurrent ExecuteAll with bounded fan-out and status aggregation
//     (healthy / degraded / unhealthy)
//   - Response-time and memory statistics for HTTP exposure
//   - Periodic resource monitor with a bounded session lifetime
//
// # Usage
//
//	checker := health.NewChecker(health.WithVersion("1.4.2"))
//	checker.Register("database", pingDB, health.CheckOptions{
//	    Timeout:  2 * time.Second,
//	    Critical: true,
//	})
//
//	report := checker.ExecuteAll(ctx)
//	// report.Status, report.Services["database"], ...
//
// Breaker timeouts are wall-clock comparisons evaluated lazily on the
// next call; there are no background timers outside the resource
// monitor.
package health
