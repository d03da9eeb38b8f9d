package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
)

// FailOpenOnError names the middleware's error policy: when the limiter
// itself fails (store unreachable, for instance) the request is allowed
// through rather than blocked.
const FailOpenOnError = true

// blockedBody is the JSON served with a 429.
var blockedBody = map[string]string{"error": "Too many requests. Please try again later."}

// Middleware wraps handlers with quota enforcement. Each request
// consumes one unit against the identifier derived by ClientIdentifier.
//
// On block the response is 429 with X-RateLimit-Limit,
// X-RateLimit-Remaining, and Retry-After headers.
func (l *Limiter) Middleware(opts Options, idOpts IdentityOptions) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ClientIdentifier(r, idOpts)

			res, err := l.Increment(r.Context(), identifier, opts)
			if err != nil {
				// FailOpenOnError: see the package constant.
				l.logger.Error("rate limiter unavailable, allowing request",
					"identifier", identifier, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(blockedBody)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
