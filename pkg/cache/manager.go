package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the key is absent or its entry expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded. The key
	// is dropped when this is returned.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores CacheEntry values in Redis. The Redis key TTL follows the
// entry's Expires, so Redis itself evicts stale pages.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a Manager. It panics on a nil client.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient}
}

// Get returns the entry for key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	entry, err := m.load(ctx, key)
	switch {
	case errors.Is(err, ErrCacheMiss):
		CacheMisses.Inc()
		return nil, err
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	// Redis evicts the key at Expires; a decoded entry past it only means
	// the two clocks disagree by a little.
	if entry.IsExpired() {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return entry, nil
}

// Set stores entry until its Expires time. Entries that are already expired
// are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if err := m.store(ctx, key, entry); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}
	return nil
}

// Delete removes the entry for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// UpdateTTL moves the expiry of an existing entry after a 304 carried fresh
// caching headers. An expiry in the past removes the entry. Lookups made
// here do not count as hits or misses.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			CacheErrors.WithLabelValues("update_ttl").Inc()
		}
		return err
	}

	entry.Expires = newExpires
	if entry.TTL() <= 0 {
		return m.Delete(ctx, key)
	}
	if err := m.store(ctx, key, entry); err != nil {
		CacheErrors.WithLabelValues("update_ttl").Inc()
		return err
	}
	return nil
}

func (m *Manager) load(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// undecodable bytes would fail every later lookup too
		_ = m.redis.Del(ctx, key.String()).Err()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

func (m *Manager) store(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
