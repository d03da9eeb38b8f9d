// Package ratelimit enforces per-identifier request quotas.
//
// # Algorithms
//
//   - Fixed window: one counter per identifier, reset atomically when the
//     window elapses
//   - Sliding window: per-request timestamps, capacity released as the
//     oldest requests age out
//   - Token bucket: capacity accrues continuously at a fixed refill rate
//     and is spent per request
//
// All three share one Store abstraction, so an in-memory map and a
// distributed backend (Redis) are interchangeable.
//
// # Usage
//
//	limiter := ratelimit.New(ratelimit.NewMemoryStore())
//
//	res, err := limiter.Increment(ctx, clientID, ratelimit.Options{
//	    Window:      time.Minute,
//	    MaxRequests: 60,
//	})
//	if err == nil && !res.Allowed {
//	    // reject, retry after res.RetryAfter
//	}
//
// The HTTP middleware responds 429 with Retry-After on block and fails
// open when the limiter itself errors: availability wins over strict
// enforcement. See FailOpenOnError.
package ratelimit
