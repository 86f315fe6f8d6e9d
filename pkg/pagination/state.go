// Package pagination drives infinite-scroll loading of the product list.
//
// A Controller owns the accumulated list for one mounted view. It fetches
// page 1 on mount and the next page whenever the view reports that the user
// scrolled near the end, with at most one fetch in flight:
//
//	ctrl := pagination.New(products.NewFetcher(apiClient), pagination.Options{
//		OnChange: view.Render,
//	})
//	ctrl.OnMount(ctx)
//	...
//	go ctrl.OnNearEnd(ctx) // safe to fire repeatedly
//
// BatchFetcher is the bulk counterpart used for exports: it walks every page
// with a bounded worker pool and does not touch any Controller.
package pagination

import (
	"github.com/Sternrassler/jshunt-client/pkg/products"
)

// Status is the controller's position in its state machine.
type Status int

const (
	// StatusIdle: no fetch in flight and more pages may exist.
	StatusIdle Status = iota
	// StatusLoading: exactly one fetch in flight.
	StatusLoading
	// StatusExhausted: every page has been merged. Terminal.
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Trigger names what asked for a load.
type Trigger string

const (
	TriggerMount   Trigger = "mount"
	TriggerNearEnd Trigger = "near_end"
	TriggerRetry   Trigger = "retry"
)

// SkipReason explains why a trigger did not start a fetch.
type SkipReason string

const (
	SkipLoading   SkipReason = "loading"
	SkipExhausted SkipReason = "exhausted"
	SkipEmpty     SkipReason = "empty"
	SkipUnmounted SkipReason = "unmounted"
)

// Outcome is what a trigger ended up doing.
type Outcome int

const (
	// OutcomeSkipped: the guard rejected the trigger; Reason says why.
	OutcomeSkipped Outcome = iota
	// OutcomeMerged: a page was fetched and appended.
	OutcomeMerged
	// OutcomeFailed: the fetch failed; Err holds the *products.FetchError.
	OutcomeFailed
	// OutcomeDiscarded: the fetch settled after Unmount and was dropped.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMerged:
		return "merged"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Result reports a single trigger.
type Result struct {
	Trigger Trigger
	Outcome Outcome
	Reason  SkipReason

	// Page is the requested page number, 0 when skipped.
	Page int

	// Added is the number of items appended.
	Added int

	// Status is the controller status once the trigger settled.
	Status Status

	Err error
}

// State is a read-only snapshot of the controller.
type State struct {
	Status Status

	// Items in server order, pages concatenated in request order. Callers
	// must not modify the slice.
	Items []products.Item

	// Info is the metadata of the latest successful response, nil before
	// the first merge.
	Info *products.PageInfo

	// CurrentPage is the number of pages merged so far.
	CurrentPage int

	// LastErr is the error of the most recent fetch, cleared by a merge.
	LastErr error
}

// Loading reports whether a fetch is in flight.
func (s State) Loading() bool {
	return s.Status == StatusLoading
}

// HasMore reports whether another page can be requested eventually.
func (s State) HasMore() bool {
	return s.Status != StatusExhausted
}
