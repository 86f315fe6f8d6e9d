package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/jshunt-client/internal/config"
	"github.com/Sternrassler/jshunt-client/internal/testutil"
	"github.com/Sternrassler/jshunt-client/internal/view"
	"github.com/Sternrassler/jshunt-client/pkg/client"
	"github.com/Sternrassler/jshunt-client/pkg/products"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T, api *testutil.MockAPI) *products.Fetcher {
	t.Helper()
	c, err := client.New(client.DefaultConfig(api.URL(), "jshunt-test/1.0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return products.NewFetcher(c)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	newRouter(nil).ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestHealthEndpoint_RedisDown(t *testing.T) {
	// nothing listens on port 1
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	defer rdb.Close()

	w := httptest.NewRecorder()
	healthHandler(rdb)(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(nil).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(body, "jshunt_pagination_in_flight") {
		t.Error("Expected metrics output to contain jshunt_pagination_in_flight")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		cmd     command
		n       int
		wantErr bool
	}{
		{"", cmdNone, 0, false},
		{"   ", cmdNone, 0, false},
		{"j", cmdDown, 0, false},
		{"DOWN", cmdDown, 0, false},
		{"k", cmdUp, 0, false},
		{"retry", cmdRetry, 0, false},
		{"q", cmdQuit, 0, false},
		{"help", cmdHelp, 0, false},
		{"open 3", cmdOpen, 3, false},
		{"o 12", cmdOpen, 12, false},
		{"open", cmdNone, 0, true},
		{"open 0", cmdNone, 0, true},
		{"open x", cmdNone, 0, true},
		{"dance", cmdNone, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, n, err := parseCommand(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCommand(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if cmd != tt.cmd || n != tt.n {
				t.Errorf("parseCommand(%q) = (%v, %d), want (%v, %d)", tt.line, cmd, n, tt.cmd, tt.n)
			}
		})
	}
}

func TestExport(t *testing.T) {
	api := testutil.NewMockAPI(testutil.Items("a", 2), testutil.Items("b", 2), testutil.Items("c", 1))
	defer api.Close()

	var buf bytes.Buffer
	n, err := export(context.Background(), newFetcher(t, api), config.ExportConfig{Concurrency: 2, PageTimeout: 5 * time.Second}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	var got []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var item products.Item
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &item))
		got = append(got, item.ID)
	}
	assert.Equal(t, []string{"a-1", "a-2", "b-1", "b-2", "c-1"}, got)
}

func TestExport_Partial(t *testing.T) {
	api := testutil.NewMockAPI(testutil.Items("a", 2), testutil.Items("b", 2))
	defer api.Close()
	api.FailPage(2, 1)

	var buf bytes.Buffer
	n, err := export(context.Background(), newFetcher(t, api), config.ExportConfig{Concurrency: 1}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial fetch (1/2 pages)")
	assert.Equal(t, 2, n, "items gathered before the failure are still written")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

type recordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNavigator) Open(_ context.Context, _, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return nil
}

func TestCommandLoop(t *testing.T) {
	api := testutil.NewMockAPI(testutil.Items("a", 3))
	defer api.Close()

	nav := &recordingNavigator{}
	var frames bytes.Buffer
	v := view.New(newFetcher(t, api), nav, view.Config{Rows: 2}, &frames)
	ctx := context.Background()
	v.Mount(ctx)
	v.Wait()

	var out bytes.Buffer
	in := strings.NewReader("open 2\nopen 9\nbogus\nq\nopen 1\n")
	require.NoError(t, commandLoop(ctx, v, in, &out))
	v.Wait()

	assert.Equal(t, []string{"https://example.com/a-2"}, nav.urls, "commands after quit are ignored")
	assert.Contains(t, out.String(), "no such item")
	assert.Contains(t, out.String(), `unknown command "bogus"`)
}

func TestCommandLoop_EOF(t *testing.T) {
	api := testutil.NewMockAPI(testutil.Items("a", 1))
	defer api.Close()

	v := view.New(newFetcher(t, api), &recordingNavigator{}, view.DefaultConfig(), io.Discard)
	assert.NoError(t, commandLoop(context.Background(), v, strings.NewReader("j\n"), io.Discard))
}

func TestCommandLoop_ContextCancelled(t *testing.T) {
	api := testutil.NewMockAPI(testutil.Items("a", 1))
	defer api.Close()

	v := view.New(newFetcher(t, api), &recordingNavigator{}, view.DefaultConfig(), io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// a pipe that never delivers input
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- commandLoop(ctx, v, pr, io.Discard) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("command loop did not stop on cancellation")
	}
}
