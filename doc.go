// Package vigil provides resilience and observability primitives:
// request rate limiting, circuit-breaker-guarded health checking, and
// alert management with deduplication and escalation.
//
// # Quick Start
//
//	core := vigil.New(
//	    vigil.WithVersion("1.4.2"),
//	    vigil.WithAlertConfig(alertCfg),
//	)
//
//	core.HealthChecker().Register("postgres", pingPostgres, health.CheckOptions{Critical: true})
//	report := core.CheckAndAlert(ctx)
//
// # Separate Subsystems
//
// Each subsystem stands alone for services that only need one:
//
//	// Only rate limiting
//	import "github.com/prilive-com/vigil/ratelimit"
//	limiter := ratelimit.New(ratelimit.NewMemoryStore())
//
//	// Only health checking
//	import "github.com/prilive-com/vigil/health"
//	checker := health.NewChecker()
//
//	// Only alerting
//	import "github.com/prilive-com/vigil/alert"
//	alerts := alert.NewManager(alert.DefaultConfig())
//
// # Features
//
//   - Fixed window, sliding window, and token bucket rate limiting
//   - Pluggable rate-limit stores: in-memory or Redis
//   - Per-service circuit breakers with forced reset and introspection
//   - Weighted health scoring with critical-service aggregation
//   - Alert deduplication, severity floors, maintenance windows
//   - Per-channel webhook delivery breakers with sony/gobreaker
//   - Webhook URL auto-redaction in logs and errors
//   - Structured logging with slog
//   - HTTP surface with go-chi
package vigil
