package alert

import "log/slog"

// SecretURL wraps a webhook URL to prevent accidental logging;
// webhook URLs embed per-workspace tokens.
// Implements fmt.Stringer, fmt.GoStringer, slog.LogValuer, and
// encoding.TextMarshaler.
type SecretURL string

// Value returns the actual URL. Only use this when posting.
func (s SecretURL) Value() string { return string(s) }

// String returns a redacted placeholder (fmt.Stringer).
func (s SecretURL) String() string { return "[REDACTED]" }

// GoString returns redacted for %#v (fmt.GoStringer).
func (s SecretURL) GoString() string { return `alert.SecretURL("[REDACTED]")` }

// LogValue returns a redacted value for slog (slog.LogValuer).
func (s SecretURL) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// MarshalText returns redacted bytes (encoding.TextMarshaler).
func (s SecretURL) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// IsEmpty returns true if the URL is empty.
func (s SecretURL) IsEmpty() bool {
	return s == ""
}
