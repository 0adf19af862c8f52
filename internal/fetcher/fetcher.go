// Package fetcher retrieves recipe pages over HTTP.
package fetcher

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading a page.
type Fetcher interface {
	// Fetch retrieves the URL and returns the (possibly truncated) body.
	// Non-2xx responses are returned as *StatusError.
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Page is a fetched HTML document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       string
	Block      BlockType
}

// Blocked reports whether anti-bot protection was detected on the page.
func (p *Page) Blocked() bool { return p.Block != BlockNone }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: status %d from %s", e.StatusCode, e.URL)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if eris.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
