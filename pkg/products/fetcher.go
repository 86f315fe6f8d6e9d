package products

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPath is the catalogue endpoint below the API base URL.
const DefaultPath = "/products"

// maxBodyBytes caps how much of a page response is decoded.
const maxBodyBytes = 8 << 20

// Getter is the transport FetchPage needs. *client.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (*http.Response, error)
}

// Fetcher retrieves single pages of products. It keeps no state between calls.
type Fetcher struct {
	api    Getter
	path   string
	logger zerolog.Logger
}

// NewFetcher creates a Fetcher for DefaultPath.
func NewFetcher(api Getter) *Fetcher {
	return &Fetcher{
		api:    api,
		path:   DefaultPath,
		logger: log.With().Str("component", "page-fetcher").Logger(),
	}
}

// WithPath returns a copy of f that requests path instead of DefaultPath.
func (f *Fetcher) WithPath(path string) *Fetcher {
	cp := *f
	cp.path = path
	return &cp
}

// FetchPage performs GET {path}?page=N. Any failure is returned as a
// *FetchError; there is no retry and no partial result.
func (f *Fetcher) FetchPage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		return nil, &FetchError{Page: page, Class: ErrorClassInvalid, Err: ErrInvalidPage}
	}

	resp, err := f.api.Get(ctx, f.path, url.Values{"page": {strconv.Itoa(page)}})
	if err != nil {
		return nil, newFetchError(page, err)
	}
	defer resp.Body.Close()

	var body pageBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, &FetchError{
			Page:       page,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassDecode,
			Err:        fmt.Errorf("decode body: %w", err),
		}
	}

	result, err := body.toPage()
	if err != nil {
		return nil, &FetchError{
			Page:       page,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassDecode,
			Err:        err,
		}
	}

	f.logger.Debug().
		Int("page", result.Info.Page).
		Int("pages", result.Info.Pages).
		Int("items", len(result.Items)).
		Msg("Page fetched")

	return result, nil
}
