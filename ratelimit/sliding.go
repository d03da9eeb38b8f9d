package ratelimit

import (
	"context"
	"time"
)

// CheckSliding evaluates the sliding-window quota without consuming it.
// Admission requires the count of timestamps within the window to be
// below MaxRequests.
func (l *Limiter) CheckSliding(ctx context.Context, identifier string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	now := l.clock.Now()

	e, err := l.store.Get(ctx, opts.key(identifier))
	if err != nil {
		return Result{}, err
	}

	var retained []time.Time
	if e != nil {
		retained = pruneTimestamps(e.Timestamps, now, opts.Window)
	}
	return slidingResult(retained, now, opts), nil
}

// IncrementSliding evaluates the sliding-window quota and, if allowed,
// records the request. Unlike the fixed window, capacity is released as
// the oldest timestamp ages out rather than all at once.
func (l *Limiter) IncrementSliding(ctx context.Context, identifier string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	now := l.clock.Now()
	key := opts.key(identifier)

	e, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if e == nil {
		e = &Entry{}
	}
	e.Timestamps = pruneTimestamps(e.Timestamps, now, opts.Window)
	e.Window = opts.Window

	if len(e.Timestamps) >= opts.MaxRequests {
		// Persist the pruning so repeated blocked calls stay bounded.
		if err := l.store.Set(ctx, key, e); err != nil {
			return Result{}, err
		}
		return slidingResult(e.Timestamps, now, opts), nil
	}

	e.Timestamps = append(e.Timestamps, now)
	if err := l.store.Set(ctx, key, e); err != nil {
		return Result{}, err
	}

	// Admission was decided before recording; the recorded request may
	// itself fill the window, so Remaining/ResetTime come from the
	// post-append state but Allowed does not.
	res := slidingResult(e.Timestamps, now, opts)
	res.Allowed = true
	res.RetryAfter = 0
	return res, nil
}

// pruneTimestamps drops timestamps older than the window, preserving order.
func pruneTimestamps(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return append([]time.Time(nil), ts[i:]...)
}

func slidingResult(retained []time.Time, now time.Time, opts Options) Result {
	remaining := opts.MaxRequests - len(retained)
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:   len(retained) < opts.MaxRequests,
		Limit:     opts.MaxRequests,
		Remaining: remaining,
		ResetTime: now.Add(opts.Window),
	}
	if len(retained) > 0 {
		// The window clears when the oldest retained request ages out.
		res.ResetTime = retained[0].Add(opts.Window)
	}
	if !res.Allowed {
		res.RetryAfter = res.ResetTime.Sub(now)
	}
	return res
}
