package vigil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prilive-com/vigil/alert"
	"github.com/prilive-com/vigil/health"
	"github.com/prilive-com/vigil/ratelimit"
)

// Core bundles the rate limiter, health checker, and alert manager into
// one facade for applications that want the full stack wired together.
type Core struct {
	logger  *slog.Logger
	limiter *ratelimit.Limiter
	checker *health.Checker
	alerts  *alert.Manager
}

type coreConfig struct {
	logger      *slog.Logger
	store       ratelimit.Store
	alertConfig alert.Config
	version     string
}

// Option configures the Core.
type Option func(*coreConfig)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *coreConfig) { c.logger = logger }
}

// WithStore sets the rate-limit backing store. Defaults to in-memory.
func WithStore(store ratelimit.Store) Option {
	return func(c *coreConfig) { c.store = store }
}

// WithAlertConfig sets alert manager configuration.
func WithAlertConfig(cfg alert.Config) Option {
	return func(c *coreConfig) { c.alertConfig = cfg }
}

// WithVersion sets the version string reported on health checks.
func WithVersion(v string) Option {
	return func(c *coreConfig) { c.version = v }
}

// New creates a Core with all three subsystems wired to the same logger.
func New(opts ...Option) *Core {
	cfg := coreConfig{
		store:       ratelimit.NewMemoryStore(),
		alertConfig: alert.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Core{
		logger:  logger,
		limiter: ratelimit.New(cfg.store, ratelimit.WithLogger(logger)),
		checker: health.NewChecker(
			health.WithVersion(cfg.version),
			health.WithLogger(logger),
		),
		alerts: alert.NewManager(cfg.alertConfig, alert.WithLogger(logger)),
	}
}

// RateLimiter returns the rate limiter.
func (c *Core) RateLimiter() *ratelimit.Limiter { return c.limiter }

// HealthChecker returns the health checker.
func (c *Core) HealthChecker() *health.Checker { return c.checker }

// Alerts returns the alert manager.
func (c *Core) Alerts() *alert.Manager { return c.alerts }

// CheckAndAlert runs every registered health check and raises an alert
// for each unhealthy service, so repeated sweeps deduplicate through
// the alert manager's aggregation window. It returns the health report.
func (c *Core) CheckAndAlert(ctx context.Context) health.Report {
	report := c.checker.ExecuteAll(ctx)

	for name, res := range report.Services {
		if res.Status == health.StatusHealthy {
			continue
		}

		ev := &alert.Event{
			Category: "health",
			Service:  name,
			Type:     string(res.Status),
			Message:  fmt.Sprintf("health check for %s is %s", name, res.Status),
			Details: map[string]any{
				"response_time": res.ResponseTimeMS,
				"error":         res.Error,
			},
		}
		if res.Critical {
			ev.Severity = alert.SeverityCritical
		} else {
			ev.Severity = alert.SeverityHigh
		}

		outcome := c.alerts.ProcessAlert(ctx, ev)
		if outcome.Error != "" {
			c.logger.Error("health alert dropped", "service", name, "error", outcome.Error)
		}
	}

	return report
}
