// Package navigation opens the detail of a selected product.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidURL is returned for item URLs that cannot be opened.
var ErrInvalidURL = errors.New("invalid item url")

// Navigator shows the detail of one item.
type Navigator interface {
	Open(ctx context.Context, title, rawURL string) error
}

// BrowserNavigator opens item URLs in the system browser.
type BrowserNavigator struct {
	logger zerolog.Logger
	open   func(string) error
}

// NewBrowserNavigator creates a BrowserNavigator.
func NewBrowserNavigator() *BrowserNavigator {
	return &BrowserNavigator{
		logger: log.With().Str("component", "navigation").Logger(),
		open:   browser.OpenURL,
	}
}

// Open validates rawURL and hands it to the browser.
func (n *BrowserNavigator) Open(ctx context.Context, title, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(rawURL); err != nil {
		return err
	}

	n.logger.Info().Str("title", title).Str("url", rawURL).Msg("Opening item")
	if err := n.open(rawURL); err != nil {
		return fmt.Errorf("open %s: %w", rawURL, err)
	}
	return nil
}

// LogNavigator only records the selection. Used when no browser is
// available.
type LogNavigator struct {
	Logger zerolog.Logger
}

// Open logs the item.
func (n LogNavigator) Open(ctx context.Context, title, rawURL string) error {
	if err := validate(rawURL); err != nil {
		return err
	}
	n.Logger.Info().Str("title", title).Str("url", rawURL).Msg("Item selected")
	return nil
}

func validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
