package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/jshunt-client/pkg/products"
	"github.com/rs/zerolog/log"
)

// ErrIncomplete is returned when pages are missing from a batch without any
// single page fetch reporting why.
var ErrIncomplete = errors.New("batch incomplete")

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the number of workers fetching pages 2..N.
	MaxConcurrency int

	// PageTimeout bounds each page fetch. Zero disables it.
	PageTimeout time.Duration
}

// DefaultBatchConfig returns a conservative configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		PageTimeout:    15 * time.Second,
	}
}

// BatchResult is the outcome of FetchAll.
type BatchResult struct {
	// Items of pages 1..PagesFetched in page order.
	Items []products.Item

	// Info is the metadata reported with page 1.
	Info products.PageInfo

	// PagesFetched counts the contiguous pages in Items.
	PagesFetched int
}

type pageResult struct {
	page  int
	items []products.Item
	err   error
}

// BatchFetcher walks every page of the catalogue with a worker pool.
type BatchFetcher struct {
	fetcher PageFetcher
	config  BatchConfig
}

// NewBatchFetcher creates a BatchFetcher, filling unset config fields.
func NewBatchFetcher(fetcher PageFetcher, config BatchConfig) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultBatchConfig().MaxConcurrency
	}
	if config.PageTimeout < 0 {
		config.PageTimeout = 0
	}
	return &BatchFetcher{fetcher: fetcher, config: config}
}

// FetchAll fetches page 1 to learn the page count, then the remaining pages
// in parallel. On the first failure the remaining work is cancelled and the
// pages gathered up to the first gap are returned with the error.
func (bf *BatchFetcher) FetchAll(ctx context.Context) (*BatchResult, error) {
	start := time.Now()

	first, err := bf.fetch(ctx, 1)
	if err != nil {
		batchPagesTotal.WithLabelValues("failed").Inc()
		return &BatchResult{}, fmt.Errorf("fetch first page: %w", err)
	}
	batchPagesTotal.WithLabelValues("ok").Inc()

	totalPages := first.Info.Pages
	byPage := map[int][]products.Item{1: first.Items}

	log.Info().
		Int("total_pages", totalPages).
		Int("workers", bf.config.MaxConcurrency).
		Msg("Starting batch fetch")

	var firstErr error
	if totalPages > 1 {
		firstErr = bf.fetchRest(ctx, totalPages, byPage)
	}

	want := max(totalPages, 1)
	result := &BatchResult{Info: first.Info}
	for page := 1; page <= want; page++ {
		items, ok := byPage[page]
		if !ok {
			break
		}
		result.Items = append(result.Items, items...)
		result.PagesFetched++
	}
	if firstErr == nil && result.PagesFetched < want {
		firstErr = fmt.Errorf("%w: page %d missing", ErrIncomplete, result.PagesFetched+1)
	}

	if firstErr != nil {
		log.Warn().
			Err(firstErr).
			Int("fetched_pages", result.PagesFetched).
			Int("total_pages", totalPages).
			Msg("Batch fetch incomplete")
		return result, fmt.Errorf("partial fetch (%d/%d pages): %w", result.PagesFetched, totalPages, firstErr)
	}

	log.Info().
		Int("pages", result.PagesFetched).
		Int("items", len(result.Items)).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return result, nil
}

func (bf *BatchFetcher) fetchRest(parent context.Context, totalPages int, byPage map[int][]products.Item) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	queue := make(chan int)
	results := make(chan pageResult)

	go func() {
		defer close(queue)
		for page := 2; page <= totalPages; page++ {
			select {
			case queue <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for r := range results {
		if r.err != nil {
			batchPagesTotal.WithLabelValues("failed").Inc()
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		batchPagesTotal.WithLabelValues("ok").Inc()
		byPage[r.page] = r.items
	}

	// workers stop silently once the caller cancels
	if firstErr == nil {
		firstErr = parent.Err()
	}
	return firstErr
}

func (bf *BatchFetcher) worker(ctx context.Context, queue <-chan int, results chan<- pageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for page := range queue {
		if ctx.Err() != nil {
			return
		}

		p, err := bf.fetch(ctx, page)
		r := pageResult{page: page, err: err}
		if err == nil {
			r.items = p.Items
		}
		results <- r
	}
}

func (bf *BatchFetcher) fetch(ctx context.Context, page int) (*products.Page, error) {
	if bf.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bf.config.PageTimeout)
		defer cancel()
	}
	return bf.fetcher.FetchPage(ctx, page)
}
