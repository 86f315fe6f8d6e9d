package pagination

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/jshunt-client/pkg/products"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errNilPage = errors.New("fetcher returned no page and no error")

// PageFetcher retrieves one page. *products.Fetcher satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (*products.Page, error)
}

// Options configures a Controller. All fields are optional.
type Options struct {
	// ErrorReporter receives every failed fetch. Defaults to a warn log.
	ErrorReporter func(page int, err error)

	// OnChange is called with a fresh snapshot after every state change.
	// It runs on the goroutine that triggered the load and must not call a
	// trigger synchronously; snapshots older than one already delivered are
	// dropped.
	OnChange func(State)

	Logger *zerolog.Logger
}

// Controller is the pagination state machine for one mounted list.
type Controller struct {
	fetcher PageFetcher
	opts    Options
	logger  zerolog.Logger

	mu          sync.Mutex
	status      Status
	items       []products.Item
	info        *products.PageInfo
	currentPage int
	lastErr     error
	unmounted   bool
	version     uint64

	// notifyMu orders OnChange deliveries; delivered is the newest version
	// handed to OnChange so far.
	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a Controller in StatusIdle with no pages merged.
func New(fetcher PageFetcher, opts Options) *Controller {
	logger := log.With().Str("component", "pagination").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	c := &Controller{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		status:  StatusIdle,
	}
	if c.opts.ErrorReporter == nil {
		c.opts.ErrorReporter = c.logFailure
	}
	return c
}

// OnMount loads page 1 of a freshly mounted list.
func (c *Controller) OnMount(ctx context.Context) Result {
	return c.load(ctx, TriggerMount)
}

// OnNearEnd loads the next page when the list is near its visible end. It
// is a no-op while loading, once exhausted, and before any item exists.
func (c *Controller) OnNearEnd(ctx context.Context) Result {
	return c.load(ctx, TriggerNearEnd)
}

// Retry re-requests the page after the last merged one. Unlike OnNearEnd it
// works on an empty list, so a failed first page can be fetched again.
func (c *Controller) Retry(ctx context.Context) Result {
	return c.load(ctx, TriggerRetry)
}

// Unmount detaches the controller from its view. Later triggers are
// skipped, and a fetch still in flight is discarded when it settles.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmounted = true
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) load(ctx context.Context, trigger Trigger) Result {
	page, reason, ok := c.begin(trigger)
	if !ok {
		triggersTotal.WithLabelValues(string(trigger), "skipped").Inc()
		c.logger.Debug().
			Str("trigger", string(trigger)).
			Str("reason", string(reason)).
			Msg("Load skipped")
		return Result{
			Trigger: trigger,
			Outcome: OutcomeSkipped,
			Reason:  reason,
			Status:  c.State().Status,
		}
	}
	triggersTotal.WithLabelValues(string(trigger), "accepted").Inc()

	fetchesInFlight.Inc()
	fetched, err := c.fetcher.FetchPage(ctx, page)
	fetchesInFlight.Dec()

	if err != nil {
		return c.fail(trigger, page, asFetchError(page, err))
	}
	if fetched == nil {
		return c.fail(trigger, page, &products.FetchError{Page: page, Class: products.ErrorClassDecode, Err: errNilPage})
	}
	return c.merge(trigger, page, fetched)
}

// begin evaluates the guard and enters StatusLoading in one critical section.
func (c *Controller) begin(trigger Trigger) (page int, reason SkipReason, ok bool) {
	c.mu.Lock()

	switch {
	case c.unmounted:
		c.mu.Unlock()
		return 0, SkipUnmounted, false
	case c.status == StatusLoading:
		c.mu.Unlock()
		return 0, SkipLoading, false
	case c.status == StatusExhausted:
		c.mu.Unlock()
		return 0, SkipExhausted, false
	case trigger == TriggerNearEnd && len(c.items) == 0:
		c.mu.Unlock()
		return 0, SkipEmpty, false
	}

	c.status = StatusLoading
	c.version++
	page = c.currentPage + 1
	snap, version := c.snapshotLocked(), c.version
	c.mu.Unlock()

	c.logger.Debug().
		Str("trigger", string(trigger)).
		Int("page", page).
		Msg("Loading page")
	c.notify(snap, version)

	return page, "", true
}

func (c *Controller) merge(trigger Trigger, page int, fetched *products.Page) Result {
	c.mu.Lock()

	if c.unmounted {
		c.status = StatusIdle
		c.mu.Unlock()
		fetchesTotal.WithLabelValues(OutcomeDiscarded.String()).Inc()
		c.logger.Debug().Int("page", page).Msg("Discarding page fetched after unmount")
		return Result{Trigger: trigger, Outcome: OutcomeDiscarded, Page: page, Status: StatusIdle}
	}

	info := fetched.Info
	c.items = append(c.items, fetched.Items...)
	c.info = &info
	c.currentPage++
	c.lastErr = nil

	c.status = StatusIdle
	if c.currentPage >= info.Pages {
		c.status = StatusExhausted
	}

	c.version++
	status := c.status
	total := len(c.items)
	snap, version := c.snapshotLocked(), c.version
	c.mu.Unlock()

	fetchesTotal.WithLabelValues(OutcomeMerged.String()).Inc()
	itemsMergedTotal.Add(float64(len(fetched.Items)))

	c.logger.Info().
		Int("page", page).
		Int("pages", info.Pages).
		Int("added", len(fetched.Items)).
		Int("items", total).
		Str("status", status.String()).
		Msg("Page merged")

	c.notify(snap, version)

	return Result{
		Trigger: trigger,
		Outcome: OutcomeMerged,
		Page:    page,
		Added:   len(fetched.Items),
		Status:  status,
	}
}

func (c *Controller) fail(trigger Trigger, page int, err *products.FetchError) Result {
	c.mu.Lock()

	if c.unmounted {
		c.status = StatusIdle
		c.mu.Unlock()
		fetchesTotal.WithLabelValues(OutcomeDiscarded.String()).Inc()
		return Result{Trigger: trigger, Outcome: OutcomeDiscarded, Page: page, Status: StatusIdle, Err: err}
	}

	c.status = StatusIdle
	c.lastErr = err
	c.version++
	snap, version := c.snapshotLocked(), c.version
	c.mu.Unlock()

	fetchesTotal.WithLabelValues(OutcomeFailed.String()).Inc()

	c.opts.ErrorReporter(page, err)
	c.notify(snap, version)

	return Result{
		Trigger: trigger,
		Outcome: OutcomeFailed,
		Page:    page,
		Status:  StatusIdle,
		Err:     err,
	}
}

func (c *Controller) snapshotLocked() State {
	n := len(c.items)
	s := State{
		Status:      c.status,
		Items:       c.items[:n:n],
		CurrentPage: c.currentPage,
		LastErr:     c.lastErr,
	}
	if c.info != nil {
		info := *c.info
		s.Info = &info
	}
	return s
}

// notify delivers s unless a newer snapshot already went out.
func (c *Controller) notify(s State, version uint64) {
	if c.opts.OnChange == nil {
		return
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if version <= c.delivered {
		return
	}
	c.delivered = version
	c.opts.OnChange(s)
}

func (c *Controller) logFailure(page int, err error) {
	c.logger.Warn().Err(err).Int("page", page).Msg("Page fetch failed")
}

// asFetchError keeps the single-error-kind contract for fetchers that return
// something other than *products.FetchError.
func asFetchError(page int, err error) *products.FetchError {
	var fe *products.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &products.FetchError{Page: page, Class: "unknown", Err: err}
}
