package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// DefaultIdentifier is used when no address can be derived at all.
const DefaultIdentifier = "unknown"

// IdentityOptions configures client identifier extraction.
type IdentityOptions struct {
	// ForwardedHeader names the forwarding header to trust.
	// Default: X-Forwarded-For.
	ForwardedHeader string

	// IncludeUserAgent appends a hashed user-agent fingerprint, which
	// separates clients sharing a NAT address.
	IncludeUserAgent bool

	// Fallback replaces DefaultIdentifier when nothing is present.
	Fallback string
}

// ClientIdentifier derives a stable identifier for an inbound request:
// the forwarding header's first entry, else the connection address,
// optionally suffixed with a user-agent fingerprint.
func ClientIdentifier(r *http.Request, opts IdentityOptions) string {
	header := opts.ForwardedHeader
	if header == "" {
		header = "X-Forwarded-For"
	}

	addr := ""
	if fwd := r.Header.Get(header); fwd != "" {
		addr = strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if addr == "" && r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			addr = host
		} else {
			addr = r.RemoteAddr
		}
	}
	if addr == "" {
		if opts.Fallback != "" {
			return opts.Fallback
		}
		return DefaultIdentifier
	}

	if opts.IncludeUserAgent {
		if ua := r.UserAgent(); ua != "" {
			addr += ":" + fingerprint(ua)
		}
	}
	return addr
}

// fingerprint hashes s to a short hex digest. Raw user agents are long
// and may carry user-identifying detail; keys should carry neither.
func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
