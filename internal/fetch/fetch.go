// Package fetch retrieves remote artifacts onto local disk.
package fetch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"devstrap/internal/logger"
)

// Error kinds. Callers classify with errors.Is; every error returned by a
// Fetcher wraps exactly one of these.
var (
	// ErrTransportUnavailable means no HTTP transport is usable at all.
	ErrTransportUnavailable = errors.New("no transport available")
	// ErrFetchFailed covers network and HTTP-level failures.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrIO covers local filesystem failures at the destination.
	ErrIO = errors.New("io error")
)

// Fetcher retrieves the bytes at a URL into a local file. Implementations do
// not retry; retrying, if wanted, belongs to the caller.
type Fetcher interface {
	Fetch(url, destPath string) error
}

// HTTPFetcher is the production Fetcher on net/http.
type HTTPFetcher struct {
	Client *http.Client
}

// New returns an HTTPFetcher on the default client.
func New() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient}
}

// Fetch downloads url to destPath. destPath's parent must already exist.
// On success the file holds the full response body. On a mid-transfer
// failure the partial file is left in place; callers must not assume the
// destination is absent after an error. (Observed behavior of the system
// this replaces — reproduced, not verified to be intentional.)
func (f *HTTPFetcher) Fetch(url, destPath string) error {
	if f.Client == nil {
		return fmt.Errorf("%w: fetcher has no http client", ErrTransportUnavailable)
	}

	logger.Debug("[DEBUG] GET %s -> %s\n", url, destPath)
	resp, err := f.Client.Get(url)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrFetchFailed, url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: GET %s: HTTP status %d", ErrFetchFailed, url, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, destPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close %s: %v\n", destPath, cerr)
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		// Partial file stays on disk, see doc comment.
		return fmt.Errorf("%w: read body of %s: %v", ErrFetchFailed, url, err)
	}
	logger.Debug("[DEBUG] Downloaded %s\n", destPath)
	return nil
}
