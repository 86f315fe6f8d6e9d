package pagination

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/jshunt-client/pkg/products"
)

// fakeFetcher serves scripted pages and records every call.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[int]*products.Page
	failures map[int]int
	calls    []int

	// gate, when set, holds every fetch until it is closed or receives.
	gate    chan struct{}
	started chan int

	// onFetch, when set, runs at the start of every fetch.
	onFetch func(page int)

	inFlight    int32
	maxInFlight int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:    make(map[int]*products.Page),
		failures: make(map[int]int),
	}
}

// catalogue scripts len(sizes) pages where page i holds sizes[i-1] items.
func (f *fakeFetcher) catalogue(sizes ...int) *fakeFetcher {
	for i, n := range sizes {
		page := i + 1
		items := make([]products.Item, n)
		for j := range items {
			items[j] = products.Item{ID: fmt.Sprintf("p%d-%d", page, j)}
		}
		f.pages[page] = &products.Page{
			Items: items,
			Info:  products.PageInfo{Page: page, Pages: len(sizes), Limit: n},
		}
	}
	return f
}

func (f *fakeFetcher) page(n int, info products.PageInfo, ids ...string) *fakeFetcher {
	items := make([]products.Item, len(ids))
	for i, id := range ids {
		items[i] = products.Item{ID: id}
	}
	f.pages[n] = &products.Page{Items: items, Info: info}
	return f
}

func (f *fakeFetcher) failNext(page, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[page] += times
}

func (f *fakeFetcher) FetchPage(ctx context.Context, page int) (*products.Page, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxInFlight)
		if n <= prev || atomic.CompareAndSwapInt32(&f.maxInFlight, prev, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, page)
	gate, started, onFetch := f.gate, f.started, f.onFetch
	f.mu.Unlock()

	if onFetch != nil {
		onFetch(page)
	}

	if started != nil {
		started <- page
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &products.FetchError{Page: page, Class: "network", Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures[page] > 0 {
		f.failures[page]--
		return nil, &products.FetchError{Page: page, StatusCode: 500, Class: "server", Err: fmt.Errorf("boom")}
	}
	p, ok := f.pages[page]
	if !ok {
		return nil, &products.FetchError{Page: page, StatusCode: 404, Class: "client", Err: fmt.Errorf("no page %d", page)}
	}
	return p, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) callsFor(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.calls {
		if p == page {
			n++
		}
	}
	return n
}
