// Package testutil provides an in-process stand-in for the catalogue API.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/jshunt-client/pkg/products"
	"github.com/gorilla/mux"
)

// MockAPI serves GET /products?page=N from a fixed list of pages.
type MockAPI struct {
	server *httptest.Server

	mu       sync.RWMutex
	pages    [][]products.Item
	failures map[int]int
	delay    time.Duration
	etags    bool
	stringPg bool
	rate     *rateLimit

	requestCount int
	pageRequests map[int]int
	lastHeader   http.Header
}

// NewMockAPI starts a server with the given pages. Page i+1 is pages[i].
func NewMockAPI(pages ...[]products.Item) *MockAPI {
	m := &MockAPI{
		pages:        pages,
		failures:     make(map[int]int),
		pageRequests: make(map[int]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/products", m.handleProducts).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	m.server = httptest.NewServer(r)
	return m
}

// URL returns the server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// FailPage makes the next n requests for page answer with a 500.
func (m *MockAPI) FailPage(page, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[page] = n
}

// SetDelay delays every response by d.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// EnableETags makes responses carry a per-page ETag and honour If-None-Match.
func (m *MockAPI) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// StringPageNumbers echoes "page" back as a JSON string, as some deployments do.
func (m *MockAPI) StringPageNumbers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stringPg = true
}

type rateLimit struct {
	limit, remaining, reset int
}

// SetRateLimit makes every response advertise X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset (seconds).
func (m *MockAPI) SetRateLimit(limit, remaining, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = &rateLimit{limit: limit, remaining: remaining, reset: resetSeconds}
}

// RequestCount returns the number of requests served.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PageRequests returns how often page was requested.
func (m *MockAPI) PageRequests(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageRequests[page]
}

// LastHeader returns the headers of the most recent request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader.Clone()
}

func (m *MockAPI) handleProducts(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page"})
			return
		}
		page = n
	}

	m.mu.Lock()
	m.requestCount++
	m.pageRequests[page]++
	m.lastHeader = r.Header.Clone()
	delay := m.delay
	etags := m.etags
	stringPg := m.stringPg
	rate := m.rate
	fail := m.failures[page] > 0
	if fail {
		m.failures[page]--
	}
	var items []products.Item
	if page <= len(m.pages) {
		items = m.pages[page-1]
	}
	total := 0
	for _, p := range m.pages {
		total += len(p)
	}
	limit := 0
	if len(m.pages) > 0 {
		limit = len(m.pages[0])
	}
	pageCount := len(m.pages)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if rate != nil {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rate.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rate.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(rate.reset))
	}

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if etags {
		etag := fmt.Sprintf(`"page-%d-of-%d"`, page, pageCount)
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "max-age=60")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	if items == nil {
		items = []products.Item{}
	}

	body := map[string]interface{}{
		"docs":  items,
		"total": total,
		"limit": limit,
		"page":  page,
		"pages": pageCount,
	}
	if stringPg {
		body["page"] = strconv.Itoa(page)
	}

	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Items builds n items with ids prefix-1..prefix-n.
func Items(prefix string, n int) []products.Item {
	items := make([]products.Item, n)
	for i := range items {
		id := fmt.Sprintf("%s-%d", prefix, i+1)
		items[i] = products.Item{
			ID:          id,
			Title:       "Product " + id,
			Description: "Description of " + id,
			URL:         "https://example.com/" + id,
		}
	}
	return items
}
