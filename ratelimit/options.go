package ratelimit

import "time"

// Default limits applied when Options fields are left zero.
const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxRequests = 20
	DefaultKeyPrefix   = "ratelimit"
)

// Options configures the windowed algorithms for a single call.
type Options struct {
	Window      time.Duration // Default: 15m
	MaxRequests int           // Default: 20
	KeyPrefix   string        // Default: "ratelimit"
}

// DefaultOptions returns the default windowed limits.
func DefaultOptions() Options {
	return Options{
		Window:      DefaultWindow,
		MaxRequests: DefaultMaxRequests,
		KeyPrefix:   DefaultKeyPrefix,
	}
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.MaxRequests <= 0 {
		o.MaxRequests = DefaultMaxRequests
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	return o
}

func (o Options) key(identifier string) string {
	return o.KeyPrefix + "_" + identifier
}

// BucketOptions configures the token bucket algorithm.
type BucketOptions struct {
	Capacity   float64       // Maximum tokens, default 20
	RefillRate float64       // Tokens per second, default 1
	KeyPrefix  string        // Default: "ratelimit"
	Window     time.Duration // Idle span after which the entry may be swept, default 15m
}

func (o BucketOptions) withDefaults() BucketOptions {
	if o.Capacity <= 0 {
		o.Capacity = float64(DefaultMaxRequests)
	}
	if o.RefillRate <= 0 {
		o.RefillRate = 1
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	return o
}

func (o BucketOptions) key(identifier string) string {
	return o.KeyPrefix + "_" + identifier
}
