package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the limiter with Redis so quotas hold across
// process instances. Entries are stored as JSON with a TTL of twice the
// entry's window, so Redis self-expires what an explicit sweep misses.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis get %q: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("ratelimit: decode entry %q: %w", key, err)
	}
	return &e, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ratelimit: encode entry %q: %w", key, err)
	}
	ttl := 2 * entry.Window
	if ttl <= 0 {
		ttl = 2 * DefaultWindow
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis set %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis del %q: %w", key, err)
	}
	return nil
}

// Entries implements Store via SCAN, so it never blocks Redis the way
// KEYS would.
func (s *RedisStore) Entries(ctx context.Context, prefix string) (map[string]*Entry, error) {
	out := make(map[string]*Entry)
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		e, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out[key] = e
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ratelimit: redis scan %q: %w", prefix, err)
	}
	return out, nil
}

// Ping verifies connectivity; handy as a health check against the
// limiter's own backend.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
