// Package ratelimit tracks the catalogue API's advertised request budget
// (X-RateLimit-* response headers) in Redis and gates outgoing requests once
// the budget for the current window is spent.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLimit     = "jshunt:rate_limit:limit"
	RedisKeyRemaining = "jshunt:rate_limit:remaining"
	RedisKeyResetAt   = "jshunt:rate_limit:reset_at"
)

// Response headers read by the tracker.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// RateLimitState is the budget most recently advertised by the server.
type RateLimitState struct {
	// Limit is the window size; 0 when the server did not send it.
	Limit int `json:"limit"`

	// Remaining requests allowed before ResetAt.
	Remaining int `json:"remaining"`

	ResetAt    time.Time `json:"reset_at"`
	LastUpdate time.Time `json:"last_update"`

	// Known is false when no headers have been seen yet.
	Known bool `json:"known"`
}

// IsStale reports whether the state is older than maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Exhausted reports whether requests must wait for the window to reset.
func (s *RateLimitState) Exhausted() bool {
	return s.Known && s.Remaining <= 0 && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
