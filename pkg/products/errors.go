package products

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/jshunt-client/pkg/client"
)

// ErrInvalidPage is wrapped by FetchError when a page number below 1 is
// requested. No request is sent in that case.
var ErrInvalidPage = errors.New("page number must be >= 1")

const (
	// ErrorClassDecode marks a 2xx response whose body was not a valid page.
	ErrorClassDecode client.ErrorClass = "decode"

	// ErrorClassInvalid marks a request rejected before sending.
	ErrorClassInvalid client.ErrorClass = "invalid"
)

// FetchError is the single failure kind of FetchPage.
type FetchError struct {
	// Page is the requested page number.
	Page int

	// StatusCode is 0 when no HTTP response was received.
	StatusCode int

	Class client.ErrorClass
	Err   error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch page %d: %s (status %d): %v", e.Page, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch page %d: %s: %v", e.Page, e.Class, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// newFetchError classifies err, taking status and class from an
// *client.APIError when there is one.
func newFetchError(page int, err error) *FetchError {
	fe := &FetchError{Page: page, Class: client.ErrorClassNetwork, Err: err}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fe.StatusCode = apiErr.StatusCode
		fe.Class = apiErr.Class
	}
	return fe
}
