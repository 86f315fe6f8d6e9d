package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jshunt_rate_limit_remaining",
		Help: "Requests remaining in the current server rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jshunt_rate_limit_blocks_total",
		Help: "Total number of requests blocked because the rate limit window was spent",
	})
)

// Tracker records rate limit headers and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// ParseHeaders extracts the advertised budget. ok is false when the response
// carries no X-RateLimit-Remaining header.
func ParseHeaders(headers http.Header, now time.Time) (state *RateLimitState, ok bool, err error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	state = &RateLimitState{
		Remaining:  remain,
		ResetAt:    now,
		LastUpdate: now,
		Known:      true,
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		secs, err := strconv.Atoi(resetStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = now.Add(time.Duration(secs) * time.Second)
	}

	return state, true, nil
}

// GetState loads the stored state. An empty store yields an unknown state
// that allows requests.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	vals, err := t.redis.MGet(ctx, RedisKeyLimit, RedisKeyRemaining, RedisKeyResetAt).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if vals[1] == nil {
		return &RateLimitState{LastUpdate: time.Now()}, nil
	}

	state := &RateLimitState{Known: true, LastUpdate: time.Now()}
	if state.Limit, err = redisInt(vals[0]); err != nil {
		return nil, fmt.Errorf("parse limit: %w", err)
	}
	if state.Remaining, err = redisInt(vals[1]); err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	resetUnix, err := redisInt(vals[2])
	if err != nil {
		return nil, fmt.Errorf("parse reset: %w", err)
	}
	state.ResetAt = time.Unix(int64(resetUnix), 0)

	return state, nil
}

func redisInt(v interface{}) (int, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("unexpected redis value type")
	}
	return strconv.Atoi(s)
}

// UpdateFromHeaders stores the budget advertised in headers. The keys expire
// with the window so a stale block can never outlive the reset.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers, time.Now())
	if err != nil || !ok {
		return err
	}

	ttl := state.TimeUntilReset() + time.Second

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLimit, state.Limit, ttl)
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyResetAt, state.ResetAt.Unix(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.Set(float64(state.Remaining))

	t.logger.Debug().
		Int("remaining", state.Remaining).
		Int("limit", state.Limit).
		Time("reset_at", state.ResetAt).
		Msg("Rate limit state updated")

	return nil
}

// ShouldAllowRequest returns false while the current window is spent. It
// never waits.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}

	if state.Exhausted() {
		t.logger.Warn().
			Dur("reset_in", state.TimeUntilReset()).
			Msg("Rate limit window spent - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}
