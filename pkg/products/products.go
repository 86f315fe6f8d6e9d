// Package products holds the catalogue data model and the Page Fetcher that
// retrieves one page of products from the API.
package products

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Item is one catalogue entry. Items are never modified after decoding.
type Item struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// PageInfo is the pagination metadata of one response. Each response's
// PageInfo replaces the previous one; it is never merged.
type PageInfo struct {
	// Page is the page that was served, starting at 1.
	Page int `json:"page"`

	// Pages is the total number of pages.
	Pages int `json:"pages"`

	// Total is the total number of items across all pages.
	Total int `json:"total"`

	// Limit is the page size used by the server.
	Limit int `json:"limit"`
}

// Page is one batch of items plus its metadata.
type Page struct {
	Items []Item
	Info  PageInfo
}

// pageBody is the wire shape of GET /products. Some deployments echo the
// page number back as a string, so numeric fields accept both forms.
type pageBody struct {
	Docs  []Item  `json:"docs"`
	Page  flexInt `json:"page"`
	Pages flexInt `json:"pages"`
	Total flexInt `json:"total"`
	Limit flexInt `json:"limit"`
}

type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = flexInt(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number or numeric string, got %s", data)
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected numeric string, got %q", s)
	}
	*n = flexInt(i)
	return nil
}

func (b pageBody) toPage() (*Page, error) {
	info := PageInfo{
		Page:  int(b.Page),
		Pages: int(b.Pages),
		Total: int(b.Total),
		Limit: int(b.Limit),
	}
	if info.Page < 1 {
		return nil, fmt.Errorf("page must be >= 1 (got %d)", info.Page)
	}
	if info.Pages < 0 {
		return nil, fmt.Errorf("pages must be >= 0 (got %d)", info.Pages)
	}

	items := b.Docs
	if items == nil {
		items = []Item{}
	}
	return &Page{Items: items, Info: info}, nil
}
