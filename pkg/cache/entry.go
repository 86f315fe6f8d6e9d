// Package cache keeps revalidation data for catalogue API responses in Redis.
//
// Entries are never served on their own: the client always asks the server,
// attaching If-None-Match or If-Modified-Since from the stored entry, and only
// replays the stored body when the server answers 304 Not Modified.
package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a stored API response.
type CacheEntry struct {
	Data         []byte      `json:"data"`
	ETag         string      `json:"etag"`
	Expires      time.Time   `json:"expires"`
	LastModified time.Time   `json:"last_modified"`
	StatusCode   int         `json:"status_code"`
	Headers      http.Header `json:"headers"`
	CachedAt     time.Time   `json:"cached_at"`
}

// IsExpired reports whether the entry is past its Expires time.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
