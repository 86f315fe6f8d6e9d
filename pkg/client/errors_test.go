package client

import (
	"errors"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorClass
	}{
		{200, ""},
		{304, ""},
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := ClassifyStatus(tt.code); got != tt.expected {
			t.Errorf("ClassifyStatus(%d) = %q, want %q", tt.code, got, tt.expected)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name: "status with wrapped error",
			err: &APIError{
				StatusCode: 500,
				Class:      ErrorClassServer,
				Message:    "500 Internal Server Error",
				Err:        errors.New("boom"),
			},
			expected: "api server error (status 500): 500 Internal Server Error: boom",
		},
		{
			name: "status only",
			err: &APIError{
				StatusCode: 404,
				Class:      ErrorClassClient,
				Message:    "404 Not Found",
			},
			expected: "api client error (status 404): 404 Not Found",
		},
		{
			name: "network",
			err: &APIError{
				Class:   ErrorClassNetwork,
				Message: "request failed",
				Err:     errors.New("connection refused"),
			},
			expected: "api network error: request failed: connection refused",
		},
		{
			name:     "no status no cause",
			err:      &APIError{Class: ErrorClassRateLimit, Message: "blocked"},
			expected: "api rate_limit error: blocked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	err := &APIError{Class: ErrorClassRateLimit, Err: ErrRateLimited}

	if !errors.Is(err, ErrRateLimited) {
		t.Error("errors.Is should see the wrapped sentinel")
	}

	bare := &APIError{Class: ErrorClassClient}
	if bare.Unwrap() != nil {
		t.Error("Unwrap() should be nil without a cause")
	}
}
