// Package view renders the product list to a terminal and translates
// scrolling into pagination triggers.
package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Sternrassler/jshunt-client/internal/navigation"
	"github.com/Sternrassler/jshunt-client/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FooterLoading = "loading..."
	FooterEnd     = "end of list"
)

var (
	// ErrNotMounted is returned by interactions on a closed or never
	// mounted view.
	ErrNotMounted = errors.New("view is not mounted")

	// ErrNoSuchItem is returned by Select for an index outside the list.
	ErrNoSuchItem = errors.New("no such item")
)

// Config sizes the viewport.
type Config struct {
	// Rows is the number of items visible at once.
	Rows int

	// Threshold is the near-end distance in viewport heights: a load is
	// requested once at most Threshold*Rows items remain below the viewport.
	Threshold float64
}

// DefaultConfig returns a ten row viewport with a half-viewport threshold.
func DefaultConfig() Config {
	return Config{Rows: 10, Threshold: 0.5}
}

// ListView hosts one pagination.Controller per mount.
type ListView struct {
	fetcher   pagination.PageFetcher
	navigator navigation.Navigator
	config    Config
	logger    zerolog.Logger

	outMu sync.Mutex
	out   io.Writer

	mu     sync.Mutex
	ctrl   *pagination.Controller
	offset int

	wg sync.WaitGroup
}

// New creates an unmounted view writing frames to out.
func New(fetcher pagination.PageFetcher, navigator navigation.Navigator, config Config, out io.Writer) *ListView {
	if config.Rows <= 0 {
		config.Rows = DefaultConfig().Rows
	}
	if config.Threshold < 0 {
		config.Threshold = 0
	}
	return &ListView{
		fetcher:   fetcher,
		navigator: navigator,
		config:    config,
		logger:    log.With().Str("component", "view").Logger(),
		out:       out,
	}
}

// Mount creates a fresh controller and requests page 1. It does nothing if
// the view is already mounted.
func (v *ListView) Mount(ctx context.Context) {
	v.mu.Lock()
	if v.ctrl != nil {
		v.mu.Unlock()
		return
	}
	var ctrl *pagination.Controller
	ctrl = pagination.New(v.fetcher, pagination.Options{
		// the snapshot is ignored; redraw reads the state under outMu so
		// frames never go backwards
		OnChange: func(pagination.State) { v.redraw(ctrl) },
		Logger:   &v.logger,
	})
	v.ctrl = ctrl
	v.offset = 0
	v.mu.Unlock()

	v.logger.Debug().Msg("View mounted")
	v.dispatch(ctx, ctrl, ctrl.OnMount)
}

// Close unmounts the controller. A fetch still in flight is discarded.
func (v *ListView) Close() {
	v.mu.Lock()
	ctrl := v.ctrl
	v.ctrl = nil
	v.mu.Unlock()

	if ctrl != nil {
		ctrl.Unmount()
		v.logger.Debug().Msg("View unmounted")
	}
}

// Wait blocks until every trigger started by the view has settled.
func (v *ListView) Wait() {
	v.wg.Wait()
}

// State returns the controller snapshot, or the zero State when unmounted.
func (v *ListView) State() pagination.State {
	ctrl, _ := v.current()
	if ctrl == nil {
		return pagination.State{}
	}
	return ctrl.State()
}

// Offset returns the index of the first visible item.
func (v *ListView) Offset() int {
	_, offset := v.current()
	return offset
}

// ScrollDown moves the viewport one row down and requests the next page
// when the end comes within the threshold.
func (v *ListView) ScrollDown(ctx context.Context) error {
	return v.scroll(ctx, 1)
}

// ScrollUp moves the viewport one row up.
func (v *ListView) ScrollUp(ctx context.Context) error {
	return v.scroll(ctx, -1)
}

// Retry re-requests the page that failed last.
func (v *ListView) Retry(ctx context.Context) error {
	ctrl, _ := v.current()
	if ctrl == nil {
		return ErrNotMounted
	}
	v.dispatch(ctx, ctrl, ctrl.Retry)
	return nil
}

// Select opens the item at index (0-based) through the navigator.
func (v *ListView) Select(ctx context.Context, index int) error {
	ctrl, _ := v.current()
	if ctrl == nil {
		return ErrNotMounted
	}

	items := ctrl.State().Items
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %d", ErrNoSuchItem, index)
	}
	item := items[index]

	v.logger.Debug().Str("id", item.ID).Int("index", index).Msg("Item selected")
	return v.navigator.Open(ctx, item.Title, item.URL)
}

func (v *ListView) current() (*pagination.Controller, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctrl, v.offset
}

func (v *ListView) scroll(ctx context.Context, delta int) error {
	ctrl, _ := v.current()
	if ctrl == nil {
		return ErrNotMounted
	}
	total := len(ctrl.State().Items)

	v.mu.Lock()
	v.offset = clamp(v.offset+delta, 0, max(total-v.config.Rows, 0))
	v.mu.Unlock()

	s := v.redraw(ctrl)
	if v.nearEnd(s) {
		v.dispatch(ctx, ctrl, ctrl.OnNearEnd)
	}
	return nil
}

// dispatch runs trigger in the background. After a merge that still leaves
// the viewport near the end, the next page is requested as well, so a short
// first page does not leave the screen half empty.
func (v *ListView) dispatch(ctx context.Context, ctrl *pagination.Controller, trigger func(context.Context) pagination.Result) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()

		res := trigger(ctx)
		if res.Outcome == pagination.OutcomeMerged && v.nearEnd(ctrl.State()) {
			v.dispatch(ctx, ctrl, ctrl.OnNearEnd)
		}
	}()
}

func (v *ListView) nearEnd(s pagination.State) bool {
	_, offset := v.current()
	return NearEnd(len(s.Items), offset, v.config.Rows, v.config.Threshold)
}

// redraw writes a frame of the controller's current state and returns it.
func (v *ListView) redraw(ctrl *pagination.Controller) pagination.State {
	v.outMu.Lock()
	defer v.outMu.Unlock()

	s := ctrl.State()
	_, offset := v.current()
	if _, err := io.WriteString(v.out, Frame(s, offset, v.config.Rows)); err != nil {
		v.logger.Warn().Err(err).Msg("Failed to render frame")
	}
	return s
}

// NearEnd reports whether at most threshold*rows items remain below a
// viewport of rows items starting at offset.
func NearEnd(total, offset, rows int, threshold float64) bool {
	remaining := total - (offset + rows)
	return float64(remaining) <= threshold*float64(rows)
}

// Frame renders the visible items and the footer. Item numbers are 1-based.
func Frame(s pagination.State, offset, rows int) string {
	var b strings.Builder

	end := min(offset+rows, len(s.Items))
	if offset < end {
		total := len(s.Items)
		if s.Info != nil && s.Info.Total > total {
			total = s.Info.Total
		}
		fmt.Fprintf(&b, "[%d-%d of %d]\n", offset+1, end, total)
		for i := offset; i < end; i++ {
			fmt.Fprintf(&b, "%4d. %s\n", i+1, s.Items[i].Title)
		}
	}

	if footer := Footer(s); footer != "" {
		b.WriteString(footer)
		b.WriteByte('\n')
	}
	return b.String()
}

// Footer is the status line under the list.
func Footer(s pagination.State) string {
	switch {
	case s.Status == pagination.StatusLoading:
		return FooterLoading
	case s.Status == pagination.StatusExhausted:
		return FooterEnd
	case s.LastErr != nil:
		return fmt.Sprintf("error: %v (type 'retry')", s.LastErr)
	default:
		return ""
	}
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
