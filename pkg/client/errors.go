package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRateLimited is returned when the rate limit gate blocks a request
// before it is sent.
var ErrRateLimited = errors.New("request blocked: rate limit window spent")

// ErrorClass is a coarse classification of a failed request.
type ErrorClass string

const (
	// ErrorClassClient covers 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer covers 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit covers 429 and requests blocked locally.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork covers transport failures with no response.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError describes a request that did not produce a usable response.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("api %s error: %s: %v", e.Class, e.Message, e.Err)
		}
		return fmt.Sprintf("api %s error: %s", e.Class, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("api %s error (status %d): %s: %v", e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status to an ErrorClass. Statuses below 400
// yield the empty class.
func ClassifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
