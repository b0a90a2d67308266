// Package feed retrieves and parses external iCal calendar feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// FetchErrorKind classifies fetch failures for retry policy decisions.
type FetchErrorKind string

const (
	FetchNetwork    FetchErrorKind = "network"
	FetchTimeout    FetchErrorKind = "timeout"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchTooLarge   FetchErrorKind = "too_large"
)

// FetchError describes a failed feed fetch. StatusCode is set only for
// FetchHTTPStatus errors.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	case FetchTooLarge:
		return fmt.Sprintf("fetching %s: response exceeds size limit", e.URL)
	case FetchTimeout:
		return fmt.Sprintf("fetching %s: timed out", e.URL)
	default:
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying within the same
// sync run. Client errors (4xx) mean the URL is wrong or revoked and will
// not fix themselves; oversized responses likewise.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchNetwork, FetchTimeout:
		return true
	case FetchHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// Fetcher retrieves raw calendar text over HTTP with a timeout and a size
// ceiling. Retries are the orchestrator's concern, not the fetcher's.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a fetcher with the given per-request timeout and
// response size ceiling in bytes.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		maxBytes: maxBytes,
	}
}

// Fetch performs an HTTP GET for the feed URL and returns the raw body.
// The declared Content-Type is not checked; platforms routinely mislabel
// text/calendar and the parser copes with whatever comes back.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{Kind: FetchNetwork, URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{Kind: FetchHTTPStatus, URL: url, StatusCode: resp.StatusCode}
	}

	// Read one byte past the ceiling so an exactly-at-limit body still passes.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", &FetchError{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return "", &FetchError{Kind: FetchTooLarge, URL: url}
	}

	return string(body), nil
}

func classifyTransportError(err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FetchTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchTimeout
	}
	return FetchNetwork
}
