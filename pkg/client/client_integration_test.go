//go:build integration

package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/jshunt-client/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient := setupRedisContainer(t)

	var requests, conditional int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "99")
		w.Header().Set("X-RateLimit-Reset", "60")

		if r.Header.Get("If-None-Match") == `"page-1"` {
			atomic.AddInt32(&conditional, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", `"page-1"`)
		w.Header().Set("Cache-Control", "max-age=120")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"docs":[{"_id":"a"}],"page":1,"pages":1}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL, "jshunt-integration/1.0")
	cfg.Redis = redisClient
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	query := url.Values{"page": {"1"}}

	for i := 0; i < 3; i++ {
		resp, err := c.Get(ctx, "/products", query)
		if err != nil {
			t.Fatalf("Get() #%d error = %v", i, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != `{"docs":[{"_id":"a"}],"page":1,"pages":1}` {
			t.Errorf("Get() #%d body = %q", i, body)
		}
	}

	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("server requests = %d, want 3 (every call revalidates)", got)
	}
	if got := atomic.LoadInt32(&conditional); got != 2 {
		t.Errorf("conditional requests = %d, want 2", got)
	}

	key := cache.CacheKey{Path: "/products", Query: query}
	if exists, _ := redisClient.Exists(ctx, key.String()).Result(); exists != 1 {
		t.Errorf("cache key %q missing from Redis", key.String())
	}
}
