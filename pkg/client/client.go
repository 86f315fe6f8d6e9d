// Package client is the HTTP transport for the product catalogue API. It adds
// request identification, optional rate limit gating and optional ETag
// revalidation on top of net/http. It makes exactly one attempt per request.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/jshunt-client/pkg/cache"
	"github.com/Sternrassler/jshunt-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HeaderRequestID carries a per-request identifier to the server.
const HeaderRequestID = "X-Request-Id"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jshunt_http_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jshunt_http_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jshunt_http_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Client talks to the catalogue API.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com/api".
	BaseURL string

	// UserAgent is sent on every request.
	UserAgent string

	// Redis enables the revalidation cache and rate limit tracking. Optional.
	Redis *redis.Client

	// Timeout bounds a whole request. Zero means no timeout.
	Timeout time.Duration

	// RespectRateLimit gates requests on X-RateLimit-* headers. Needs Redis.
	RespectRateLimit bool
}

// DefaultConfig returns a configuration without Redis and without a timeout.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:          baseURL,
		UserAgent:        userAgent,
		RespectRateLimit: true,
	}
}

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "api-client").Logger()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
		if cfg.RespectRateLimit {
			c.rateLimiter = ratelimit.NewTracker(cfg.Redis, logger)
		}
	}

	return c, nil
}

// Get performs a GET request against path below the base URL.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Do sends req once. A non-nil error is an *APIError or wraps ErrRateLimited;
// on success the response status is 2xx and the caller must close the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Rate limit check failed, sending anyway")
		} else if !allowed {
			requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			return nil, &APIError{
				Class:   ErrorClassRateLimit,
				Message: "blocked before sending",
				Err:     ErrRateLimited,
			}
		}
	}

	var (
		cacheKey    cache.CacheKey
		cachedEntry *cache.CacheEntry
	)
	if c.cache != nil {
		cacheKey = cache.CacheKey{Path: endpoint, Query: req.URL.Query()}

		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil && cache.ShouldMakeConditionalRequest(entry) {
			cachedEntry = entry
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequestsSent.Inc()
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Str("request_id", req.Header.Get(HeaderRequestID)).
		Bool("conditional", cachedEntry != nil).
		Msg("Sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record rate limit headers")
		}
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()

		if cachedEntry == nil {
			errorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Class:      ErrorClassServer,
				Message:    "not modified without a cached entry",
			}
		}

		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - replaying cached body")

		if resp.Header.Get("Expires") != "" || resp.Header.Get("Cache-Control") != "" {
			if err := c.cache.UpdateTTL(ctx, cacheKey, cache.ExpiresFromHeaders(resp.Header)); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
			}
		}

		return cache.EntryToResponse(cachedEntry), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()

		class := ClassifyStatus(resp.StatusCode)
		if class == "" {
			class = ErrorClassServer
		}
		errorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("API request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to read response for cache")
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Class:      ErrorClassNetwork,
				Message:    "read body",
				Err:        err,
			}
		}
		if ShouldStore(entry) {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			}
		}
	}

	return resp, nil
}

// ShouldStore reports whether a response entry is worth keeping: it needs a
// validator for revalidation and time left before expiry.
func ShouldStore(entry *cache.CacheEntry) bool {
	return cache.ShouldMakeConditionalRequest(entry) && entry.TTL() > 0
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Close drops idle HTTP connections. The Redis client stays open; it
// belongs to the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
