package server

import (
	"os"
	"strconv"
	"time"
)

// Config holds HTTP server configuration.
type Config struct {
	// Listen port.
	Port int

	// TLS material. Both empty serves plain HTTP.
	TLSCertPath string
	TLSKeyPath  string

	// Version string reported on /health.
	Version string

	// Rate limiting applied to all routes. Zero disables the middleware.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Server timeouts
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Shutdown
	DrainDelay      time.Duration // Wait for LB before shutdown
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:              8080,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		DrainDelay:        5 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if port, err := strconv.Atoi(getEnv("VIGIL_PORT", "8080")); err == nil {
		if port < 1 || port > 65535 {
			return nil, &ValidationError{Field: "VIGIL_PORT", Reason: "must be 1-65535"}
		}
		cfg.Port = port
	}

	cfg.TLSCertPath = getEnv("VIGIL_TLS_CERT_PATH", "")
	cfg.TLSKeyPath = getEnv("VIGIL_TLS_KEY_PATH", "")
	cfg.Version = getEnv("VIGIL_VERSION", "")

	if max, err := strconv.Atoi(getEnv("VIGIL_RATE_LIMIT_MAX", "0")); err == nil {
		if max < 0 {
			return nil, &ValidationError{Field: "VIGIL_RATE_LIMIT_MAX", Reason: "must be >= 0"}
		}
		cfg.RateLimitMax = max
	}
	if d, err := time.ParseDuration(getEnv("VIGIL_RATE_LIMIT_WINDOW", "15m")); err == nil {
		cfg.RateLimitWindow = d
	}

	if d, err := time.ParseDuration(getEnv("VIGIL_READ_TIMEOUT", "10s")); err == nil {
		cfg.ReadTimeout = d
	}
	if d, err := time.ParseDuration(getEnv("VIGIL_READ_HEADER_TIMEOUT", "2s")); err == nil {
		cfg.ReadHeaderTimeout = d
	}
	if d, err := time.ParseDuration(getEnv("VIGIL_WRITE_TIMEOUT", "15s")); err == nil {
		cfg.WriteTimeout = d
	}
	if d, err := time.ParseDuration(getEnv("VIGIL_IDLE_TIMEOUT", "120s")); err == nil {
		cfg.IdleTimeout = d
	}

	if d, err := time.ParseDuration(getEnv("VIGIL_DRAIN_DELAY", "5s")); err == nil {
		cfg.DrainDelay = d
	}
	if d, err := time.ParseDuration(getEnv("VIGIL_SHUTDOWN_TIMEOUT", "15s")); err == nil {
		cfg.ShutdownTimeout = d
	}

	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
