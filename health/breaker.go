package health

import (
	"sync"
	"time"

	"github.com/prilive-com/vigil/internal/clock"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Threshold int           // Consecutive failures before opening
	Timeout   time.Duration // Open duration before a half-open probe
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold: 5,
		Timeout:   60 * time.Second,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Breaker is a per-dependency failure-tracking state machine:
// closed -> open -> half-open -> closed.
//
// The open timeout is a lazy wall-clock comparison, not a scheduled
// callback: once it elapses the breaker reports half-open and admits a
// single trial attempt, whose outcome either closes or reopens it.
type Breaker struct {
	mu          sync.Mutex
	clock       clock.Clock
	threshold   int
	timeout     time.Duration
	open        bool
	failures    int
	lastFailure time.Time
	everOpened  bool
}

// NewBreaker creates a Breaker with the given configuration.
func NewBreaker(cfg BreakerConfig, clk clock.Clock) *Breaker {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = clock.System{}
	}
	return &Breaker{
		clock:     clk,
		threshold: cfg.Threshold,
		timeout:   cfg.Timeout,
	}
}

// CanAttempt reports whether a call may proceed: true while closed, and
// true exactly when an open breaker's timeout has elapsed (half-open).
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	return b.clock.Now().Sub(b.lastFailure) >= b.timeout
}

// RecordSuccess closes the breaker and zeroes the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.open = false
	b.failures = 0
	b.mu.Unlock()
}

// RecordFailure counts a failure, opening the breaker once the
// consecutive-failure threshold is reached. A failed half-open probe
// restamps the failure time, so the breaker stays open for another
// full timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	b.failures++
	b.lastFailure = b.clock.Now()
	if b.failures >= b.threshold {
		b.open = true
		b.everOpened = true
	}
	b.mu.Unlock()
}

// State derives the current state, treating an elapsed open timeout as
// half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state()
}

func (b *Breaker) state() State {
	if !b.open {
		return StateClosed
	}
	if b.clock.Now().Sub(b.lastFailure) >= b.timeout {
		return StateHalfOpen
	}
	return StateOpen
}

// HasOpened reports whether the breaker has ever tripped.
func (b *Breaker) HasOpened() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.everOpened
}

// Reset forces the breaker closed. Used for operator-driven recovery.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.open = false
	b.failures = 0
	b.lastFailure = time.Time{}
	b.mu.Unlock()
}

// BreakerSnapshot is a read-only view of breaker state for
// introspection endpoints.
type BreakerSnapshot struct {
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	Threshold    int       `json:"threshold"`
	TimeoutMS    int64     `json:"timeout_ms"`
	LastFailure  time.Time `json:"last_failure,omitzero"`
}

// Snapshot captures the breaker's current state.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:        b.state(),
		FailureCount: b.failures,
		Threshold:    b.threshold,
		TimeoutMS:    b.timeout.Milliseconds(),
		LastFailure:  b.lastFailure,
	}
}
