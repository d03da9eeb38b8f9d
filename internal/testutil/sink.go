// Package testutil provides shared test helpers.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Capture represents a captured HTTP request with timestamp.
type Capture struct {
	Method      string
	Path        string
	Headers     http.Header
	Body        []byte
	ContentType string
	Timestamp   time.Time
}

// DecodeJSON unmarshals the captured body into v.
func (c *Capture) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(c.Body, v); err != nil {
		t.Fatalf("decode captured body: %v", err)
	}
}

// AssertContentType verifies the Content-Type header contains expected value.
func (c *Capture) AssertContentType(t *testing.T, expected string) {
	t.Helper()
	if !strings.Contains(c.ContentType, expected) {
		t.Errorf("unexpected content-type %q, want %q", c.ContentType, expected)
	}
}

// WebhookSink is a mock webhook endpoint that records every request it
// receives. The server is closed automatically when the test completes.
type WebhookSink struct {
	*httptest.Server
	t *testing.T

	mu       sync.Mutex
	status   int
	captures []Capture
}

// NewWebhookSink creates a sink that answers 200 OK until told otherwise.
func NewWebhookSink(t *testing.T) *WebhookSink {
	t.Helper()

	s := &WebhookSink{t: t, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Server.Close)
	return s
}

func (s *WebhookSink) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()

	s.mu.Lock()
	s.captures = append(s.captures, Capture{
		Method:      r.Method,
		Path:        r.URL.Path,
		Headers:     r.Header.Clone(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		Timestamp:   time.Now(),
	})
	status := s.status
	s.mu.Unlock()

	w.WriteHeader(status)
}

// SetStatus changes the status code returned to subsequent requests.
func (s *WebhookSink) SetStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

// Captures returns a copy of all captured requests.
func (s *WebhookSink) Captures() []Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Capture, len(s.captures))
	copy(out, s.captures)
	return out
}

// Count returns the number of requests received so far.
func (s *WebhookSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captures)
}

// Last returns the most recent capture, failing the test when none exist.
func (s *WebhookSink) Last(t *testing.T) Capture {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.captures) == 0 {
		t.Fatal("no requests captured")
	}
	return s.captures[len(s.captures)-1]
}
