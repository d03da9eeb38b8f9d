package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prilive-com/vigil/internal/clock"
)

// Limiter evaluates request quotas against a Store.
//
// Check is a read-only evaluation; Increment consumes quota. Both share
// the same entry shapes, so a Check/Increment pair over one identifier
// observes consistent state.
type Limiter struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

// LimiterOption configures the Limiter.
type LimiterOption func(*Limiter)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c clock.Clock) LimiterOption {
	return func(l *Limiter) { l.clock = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter over the given store.
func New(store Store, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:  store,
		clock:  clock.System{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result reports the outcome of a quota evaluation.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetTime  time.Time     `json:"reset_time"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Check evaluates the fixed-window quota without consuming it.
func (l *Limiter) Check(ctx context.Context, identifier string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	now := l.clock.Now()

	e, err := l.store.Get(ctx, opts.key(identifier))
	if err != nil {
		return Result{}, err
	}
	if e == nil || now.Sub(e.WindowStart) >= opts.Window {
		return Result{
			Allowed:   true,
			Limit:     opts.MaxRequests,
			Remaining: opts.MaxRequests,
			ResetTime: now.Add(opts.Window),
		}, nil
	}

	remaining := opts.MaxRequests - e.Count
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:   e.Count < opts.MaxRequests,
		Limit:     opts.MaxRequests,
		Remaining: remaining,
		ResetTime: e.ResetTime,
	}
	if !res.Allowed {
		res.RetryAfter = e.ResetTime.Sub(now)
	}
	return res, nil
}

// Increment evaluates the fixed-window quota and, if allowed, consumes
// one unit. The counter never exceeds MaxRequests once blocking begins.
func (l *Limiter) Increment(ctx context.Context, identifier string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	now := l.clock.Now()
	key := opts.key(identifier)

	e, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}

	// New identifier or elapsed window: the window resets atomically.
	if e == nil || now.Sub(e.WindowStart) >= opts.Window {
		e = &Entry{
			Count:       1,
			WindowStart: now,
			ResetTime:   now.Add(opts.Window),
			Window:      opts.Window,
		}
		if err := l.store.Set(ctx, key, e); err != nil {
			return Result{}, err
		}
		return Result{
			Allowed:   true,
			Limit:     opts.MaxRequests,
			Remaining: opts.MaxRequests - 1,
			ResetTime: e.ResetTime,
		}, nil
	}

	if e.Count >= opts.MaxRequests {
		return Result{
			Allowed:    false,
			Limit:      opts.MaxRequests,
			Remaining:  0,
			ResetTime:  e.ResetTime,
			RetryAfter: e.ResetTime.Sub(now),
		}, nil
	}

	e.Count++
	if err := l.store.Set(ctx, key, e); err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   true,
		Limit:     opts.MaxRequests,
		Remaining: opts.MaxRequests - e.Count,
		ResetTime: e.ResetTime,
	}, nil
}

// Reset deletes the entry for identifier under prefix.
func (l *Limiter) Reset(ctx context.Context, identifier, prefix string) error {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return l.store.Delete(ctx, prefix+"_"+identifier)
}

// CleanExpired sweeps entries under prefix whose window has elapsed and
// returns the number removed. Sweeps are explicit, externally triggered
// operations; nothing runs in the background.
func (l *Limiter) CleanExpired(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	entries, err := l.store.Entries(ctx, prefix)
	if err != nil {
		return 0, err
	}

	now := l.clock.Now()
	removed := 0
	for key, e := range entries {
		window := e.Window
		if window <= 0 {
			window = DefaultWindow
		}
		if now.Sub(e.lastActivity()) < window {
			continue
		}
		if err := l.store.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		l.logger.Debug("swept expired rate-limit entries", "prefix", prefix, "removed", removed)
	}
	return removed, nil
}
