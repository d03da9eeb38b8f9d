package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/prilive-com/vigil/internal/clock"
	"github.com/prilive-com/vigil/internal/syncutil"
)

// Sentinel errors - use with errors.Is()
var (
	ErrCheckNotFound  = errors.New("vigil/health: check not found")
	ErrMonitorRunning = errors.New("vigil/health: monitor already running")
)

// circuitOpenError is the exact error string short-circuited results
// carry; consumers match on it.
const circuitOpenError = "Circuit breaker open"

// Status is an individual or aggregate health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency. A nil error means healthy; the
// returned map is an optional diagnostic payload carried into the
// result. The function must honor ctx cancellation: on timeout the
// in-flight check is cancelled.
type CheckFunc func(ctx context.Context) (map[string]any, error)

// CheckOptions configures a registration.
type CheckOptions struct {
	Timeout  time.Duration // Default: 5s
	Critical bool          // Critical failures make the whole system unhealthy
	Weight   int           // Relative share in the health score, default 1
	Breaker  BreakerConfig // Zero value takes DefaultBreakerConfig
}

// registration is immutable after Register; looked up by name on every
// execution cycle.
type registration struct {
	name     string
	fn       CheckFunc
	timeout  time.Duration
	critical bool
	weight   int
	breaker  *Breaker
}

// CheckResult is the outcome of one check execution.
type CheckResult struct {
	Status         Status           `json:"status"`
	ResponseTimeMS float64          `json:"response_time"`
	Error          string           `json:"error,omitempty"`
	Details        map[string]any   `json:"details,omitempty"`
	Critical       bool             `json:"critical,omitempty"`
	Breaker        *BreakerSnapshot `json:"circuit_breaker,omitempty"`
}

// ServiceReport is a single-check report with registration validation.
type ServiceReport struct {
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	CheckResult
}

// Performance aggregates response-time and resource statistics.
type Performance struct {
	AvgResponseTimeMS   float64 `json:"avg_response_time"`
	TotalResponseTimeMS float64 `json:"total_response_time"`
	ErrorRate           float64 `json:"error_rate"`
	MemoryUsage         uint64  `json:"memory_usage"`
}

// Report is the aggregate outcome of ExecuteAll.
type Report struct {
	Status        Status                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	Version       string                 `json:"version,omitempty"`
	UptimeSeconds float64                `json:"uptime"`
	Score         int                    `json:"score"`
	Services      map[string]CheckResult `json:"services"`
	Performance   Performance            `json:"performance"`
}

// Checker is the registry and executor of named checks.
type Checker struct {
	mu            sync.RWMutex
	checks        map[string]*registration
	order         []string
	clock         clock.Clock
	logger        *slog.Logger
	version       string
	started       time.Time
	maxConcurrent int
	proc          *process.Process
}

// CheckerOption configures the Checker.
type CheckerOption func(*Checker)

// WithVersion sets the version string reported by ExecuteAll.
func WithVersion(v string) CheckerOption {
	return func(c *Checker) { c.version = v }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) { c.logger = logger }
}

// WithClock sets the time source. Defaults to the system clock.
func WithClock(clk clock.Clock) CheckerOption {
	return func(c *Checker) { c.clock = clk }
}

// WithMaxConcurrent bounds ExecuteAll's fan-out. Default: 8.
func WithMaxConcurrent(n int) CheckerOption {
	return func(c *Checker) { c.maxConcurrent = n }
}

// NewChecker creates an empty Checker.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		checks:        make(map[string]*registration),
		clock:         clock.System{},
		logger:        slog.Default(),
		maxConcurrent: 8,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.started = c.clock.Now()
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = proc
	}
	return c
}

// Register adds a named check. The first registration for a name wins;
// duplicates are ignored but logged, since a duplicate usually means a
// caller wired the same dependency twice.
func (c *Checker) Register(name string, fn CheckFunc, opts CheckOptions) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Weight <= 0 {
		opts.Weight = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.checks[name]; exists {
		c.logger.Warn("duplicate check registration ignored", "check", name)
		return
	}
	c.checks[name] = &registration{
		name:     name,
		fn:       fn,
		timeout:  opts.Timeout,
		critical: opts.Critical,
		weight:   opts.Weight,
		breaker:  NewBreaker(opts.Breaker, c.clock),
	}
	c.order = append(c.order, name)
}

// Execute runs a single registered check.
func (c *Checker) Execute(ctx context.Context, name string) (CheckResult, error) {
	c.mu.RLock()
	reg, ok := c.checks[name]
	c.mu.RUnlock()
	if !ok {
		return CheckResult{}, fmt.Errorf("%w: %q", ErrCheckNotFound, name)
	}
	return c.run(ctx, reg), nil
}

// CheckService is the single-check variant with registration
// validation, stamped for direct HTTP exposure.
func (c *Checker) CheckService(ctx context.Context, name string) (ServiceReport, error) {
	result, err := c.Execute(ctx, name)
	if err != nil {
		return ServiceReport{}, err
	}
	return ServiceReport{
		Service:     name,
		Timestamp:   c.clock.Now(),
		CheckResult: result,
	}, nil
}

// run executes one check under its breaker and timeout.
func (c *Checker) run(ctx context.Context, reg *registration) CheckResult {
	// Fast-fail while the breaker is open: the whole point is to stop
	// paying for a dependency that is already known to be down.
	if !reg.breaker.CanAttempt() {
		snap := reg.breaker.Snapshot()
		return CheckResult{
			Status:   StatusUnhealthy,
			Error:    circuitOpenError,
			Critical: reg.critical,
			Breaker:  &snap,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	type outcome struct {
		details map[string]any
		err     error
	}
	ch := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("check panicked: %v", r)}
			}
		}()
		details, err := reg.fn(ctx)
		ch <- outcome{details: details, err: err}
	}()

	var result CheckResult
	select {
	case out := <-ch:
		result.ResponseTimeMS = msSince(start)
		if out.err != nil {
			reg.breaker.RecordFailure()
			result.Status = StatusUnhealthy
			result.Error = out.err.Error()
			c.logger.Warn("health check failed", "check", reg.name, "error", out.err)
		} else {
			reg.breaker.RecordSuccess()
			result.Status = StatusHealthy
			result.Details = out.details
		}
	case <-ctx.Done():
		result.ResponseTimeMS = msSince(start)
		result.Status = StatusUnhealthy
		if errors.Is(ctx.Err(), context.Canceled) {
			// Caller abort, not a dependency failure: the breaker
			// stays uncharged.
			result.Error = "check cancelled"
			c.logger.Warn("health check cancelled", "check", reg.name)
		} else {
			// Timeouts count as failures for breaker accounting but
			// carry a distinguishing message.
			reg.breaker.RecordFailure()
			result.Error = fmt.Sprintf("check timed out after %s", reg.timeout)
			c.logger.Warn("health check timed out", "check", reg.name, "timeout", reg.timeout)
		}
	}

	result.Critical = reg.critical
	if reg.breaker.HasOpened() {
		snap := reg.breaker.Snapshot()
		result.Breaker = &snap
	}
	return result
}

// ExecuteAll runs every registered check concurrently and aggregates
// the results. Zero registered checks yields a healthy report with
// empty services.
func (c *Checker) ExecuteAll(ctx context.Context) Report {
	c.mu.RLock()
	regs := make([]*registration, 0, len(c.order))
	for _, name := range c.order {
		regs = append(regs, c.checks[name])
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(regs))
	var mu sync.Mutex
	g := syncutil.NewGroup(c.maxConcurrent)
	for _, reg := range regs {
		reg := reg
		g.Go(func() {
			res := c.run(ctx, reg)
			mu.Lock()
			results[reg.name] = res
			mu.Unlock()
		})
	}
	g.Wait()

	report := Report{
		Status:        StatusHealthy,
		Timestamp:     c.clock.Now(),
		Version:       c.version,
		UptimeSeconds: c.clock.Now().Sub(c.started).Seconds(),
		Score:         100,
		Services:      results,
		Performance:   Performance{MemoryUsage: c.memoryUsage()},
	}
	if len(regs) == 0 {
		return report
	}

	failed := 0
	weightTotal, weightHealthy := 0, 0
	criticalDown := false
	for _, reg := range regs {
		res := results[reg.name]
		weightTotal += reg.weight
		if res.Status == StatusHealthy {
			weightHealthy += reg.weight
		} else {
			failed++
			if reg.critical {
				criticalDown = true
			}
		}
		report.Performance.TotalResponseTimeMS += res.ResponseTimeMS
	}

	switch {
	case failed == 0:
		report.Status = StatusHealthy
	case criticalDown:
		report.Status = StatusUnhealthy
	default:
		report.Status = StatusDegraded
	}
	report.Performance.AvgResponseTimeMS = report.Performance.TotalResponseTimeMS / float64(len(regs))
	report.Performance.ErrorRate = float64(failed) / float64(len(regs))
	if weightTotal > 0 {
		report.Score = weightHealthy * 100 / weightTotal
	}
	return report
}

// BreakerSnapshots returns the breaker state for every registered check.
func (c *Checker) BreakerSnapshots() map[string]BreakerSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]BreakerSnapshot, len(c.checks))
	for name, reg := range c.checks {
		out[name] = reg.breaker.Snapshot()
	}
	return out
}

// ResetBreakers forces every breaker closed.
func (c *Checker) ResetBreakers() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, reg := range c.checks {
		reg.breaker.Reset()
		c.logger.Info("circuit breaker reset", "check", name)
	}
}

func (c *Checker) memoryUsage() uint64 {
	if c.proc == nil {
		return 0
	}
	if mi, err := c.proc.MemoryInfo(); err == nil {
		return mi.RSS
	}
	return 0
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
