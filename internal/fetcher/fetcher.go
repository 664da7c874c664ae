// Package fetcher provides the HTTP transport each site adapter owns for its
// lifetime. It performs exactly one round-trip per call and never retries;
// retry policy belongs to whoever drives the adapter.
package fetcher

import (
	"context"
	"net/http"
)

// Fetcher defines the transport operations available to site adapters.
type Fetcher interface {
	// Get fetches the URL and returns the response body. Non-2xx responses
	// fail with a *TransportError.
	Get(ctx context.Context, url string, headers http.Header) ([]byte, error)

	// PostJSON marshals payload as the request body and returns the
	// response body. Non-2xx responses fail with a *TransportError.
	PostJSON(ctx context.Context, url string, headers http.Header, payload any) ([]byte, error)

	// Close releases pooled connections. Calls made after Close fail.
	Close() error
}
