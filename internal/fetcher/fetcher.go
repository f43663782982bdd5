// Package fetcher downloads remote datasets over HTTP with retry and per-host
// rate limiting, and streams the CSV and JSON shapes the census endpoints return.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. A 204 No
	// Content response yields an empty body, not an error.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
