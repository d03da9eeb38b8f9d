package ratelimit

import (
	"context"
	"math"
	"time"
)

// BucketResult reports the outcome of a token-bucket evaluation.
type BucketResult struct {
	Allowed    bool          `json:"allowed"`
	Tokens     float64       `json:"tokens"`
	Capacity   float64       `json:"capacity"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// TakeTokens refills the bucket for elapsed time and, when at least n
// tokens are available, debits them. Tokens accrue at RefillRate per
// second, capped at Capacity.
func (l *Limiter) TakeTokens(ctx context.Context, identifier string, n float64, opts BucketOptions) (BucketResult, error) {
	opts = opts.withDefaults()
	now := l.clock.Now()
	key := opts.key(identifier)

	e, err := l.store.Get(ctx, key)
	if err != nil {
		return BucketResult{}, err
	}
	if e == nil {
		e = &Entry{Tokens: opts.Capacity, LastRefill: now}
	}
	refillBucket(e, now, opts)
	e.Window = opts.Window

	res := BucketResult{Capacity: opts.Capacity}
	if e.Tokens >= n {
		e.Tokens -= n
		res.Allowed = true
	} else {
		res.RetryAfter = retryForTokens(n-e.Tokens, opts.RefillRate)
	}
	res.Tokens = e.Tokens

	if err := l.store.Set(ctx, key, e); err != nil {
		return BucketResult{}, err
	}
	return res, nil
}

// PeekTokens evaluates the bucket without debiting it.
func (l *Limiter) PeekTokens(ctx context.Context, identifier string, n float64, opts BucketOptions) (BucketResult, error) {
	opts = opts.withDefaults()
	now := l.clock.Now()

	e, err := l.store.Get(ctx, opts.key(identifier))
	if err != nil {
		return BucketResult{}, err
	}
	if e == nil {
		e = &Entry{Tokens: opts.Capacity, LastRefill: now}
	}
	refillBucket(e, now, opts)

	res := BucketResult{
		Allowed:  e.Tokens >= n,
		Tokens:   e.Tokens,
		Capacity: opts.Capacity,
	}
	if !res.Allowed {
		res.RetryAfter = retryForTokens(n-e.Tokens, opts.RefillRate)
	}
	return res, nil
}

func refillBucket(e *Entry, now time.Time, opts BucketOptions) {
	elapsed := now.Sub(e.LastRefill).Seconds()
	if elapsed > 0 {
		e.Tokens = math.Min(opts.Capacity, e.Tokens+elapsed*opts.RefillRate)
	}
	if e.Tokens > opts.Capacity {
		e.Tokens = opts.Capacity
	}
	e.LastRefill = now
}

// retryForTokens is the whole-second wait until deficit tokens accrue.
func retryForTokens(deficit, refillRate float64) time.Duration {
	return time.Duration(math.Ceil(deficit/refillRate)) * time.Second
}
