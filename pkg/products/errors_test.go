package products_test

import (
	"errors"
	"testing"

	"github.com/Sternrassler/jshunt-client/pkg/client"
	"github.com/Sternrassler/jshunt-client/pkg/products"
)

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *products.FetchError
		expected string
	}{
		{
			name: "with status",
			err: &products.FetchError{
				Page:       3,
				StatusCode: 502,
				Class:      client.ErrorClassServer,
				Err:        errors.New("bad gateway"),
			},
			expected: "fetch page 3: server (status 502): bad gateway",
		},
		{
			name: "without status",
			err: &products.FetchError{
				Page:  1,
				Class: client.ErrorClassNetwork,
				Err:   errors.New("connection refused"),
			},
			expected: "fetch page 1: network: connection refused",
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

func TestFetchError_UnwrapsAPIError(t *testing.T) {
	apiErr := &client.APIError{StatusCode: 404, Class: client.ErrorClassClient, Message: "404 Not Found"}
	fe := &products.FetchError{Page: 7, StatusCode: 404, Class: client.ErrorClassClient, Err: apiErr}

	var got *client.APIError
	if !errors.As(fe, &got) || got != apiErr {
		t.Error("errors.As should reach the wrapped APIError")
	}
}
