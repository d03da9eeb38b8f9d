package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Entry holds per-identifier limiter state. Exactly one of the algorithm
// sections is populated, depending on which API touched the key.
type Entry struct {
	// Fixed window
	Count       int       `json:"count,omitempty"`
	WindowStart time.Time `json:"window_start,omitzero"`
	ResetTime   time.Time `json:"reset_time,omitzero"`

	// Sliding window
	Timestamps []time.Time `json:"timestamps,omitempty"`

	// Token bucket
	Tokens     float64   `json:"tokens,omitempty"`
	LastRefill time.Time `json:"last_refill,omitzero"`

	// Window is recorded on every write so sweeps can judge expiry
	// without the caller's Options.
	Window time.Duration `json:"window,omitempty"`
}

// lastActivity returns the most recent touch for expiry judgement.
func (e *Entry) lastActivity() time.Time {
	switch {
	case len(e.Timestamps) > 0:
		return e.Timestamps[len(e.Timestamps)-1]
	case !e.LastRefill.IsZero():
		return e.LastRefill
	default:
		return e.WindowStart
	}
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Timestamps != nil {
		c.Timestamps = append([]time.Time(nil), e.Timestamps...)
	}
	return &c
}

// Store is the entry storage abstraction. An in-memory map and a
// distributed backend are interchangeable; the limiter always
// read-modify-writes through it.
//
// Get returns (nil, nil) when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Entries(ctx context.Context, prefix string) (map[string]*Entry, error)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get implements Store. Entries are copied on the way out so callers
// never alias stored state.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return e.clone(), nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	s.entries[key] = entry.clone()
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Entries implements Store.
func (s *MemoryStore) Entries(_ context.Context, prefix string) (map[string]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Entry)
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			out[k] = e.clone()
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
