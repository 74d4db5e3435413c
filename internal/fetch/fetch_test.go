package fetch

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWritesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("artifact-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "artifact.zip")
	err := New().Fetch(server.URL, dest)
	require.NoError(t, err)

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "artifact-bytes", string(raw))
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	err := New().Fetch(server.URL, filepath.Join(t.TempDir(), "artifact.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestFetchUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // nothing listening anymore

	err := New().Fetch(url, filepath.Join(t.TempDir(), "artifact.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestFetchMissingParentDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	err := New().Fetch(server.URL, filepath.Join(t.TempDir(), "no", "such", "dir", "artifact.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}

func TestFetchNoTransport(t *testing.T) {
	f := &HTTPFetcher{Client: nil}
	err := f.Fetch("http://example.test/x", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportUnavailable)
}

func TestFetchTruncatedBodyLeavesPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than we deliver so the client sees a
		// mid-transfer failure.
		w.Header().Set("Content-Length", "1024")
		_, _ = w.Write([]byte("partial"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "artifact.zip")
	err := New().Fetch(server.URL, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)

	// The partial file stays behind; callers cannot assume absence after a
	// failed fetch.
	raw, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "partial", string(raw))
}
