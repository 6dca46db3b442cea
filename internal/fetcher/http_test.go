package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file content here"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	path := filepath.Join(t.TempDir(), "out.zip")

	n, err := f.DownloadToFile(context.Background(), srv.URL+"/file", path)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file content here", string(data))
}

func TestDownload_RetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL+"/flaky")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(data))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDownload_NotFoundIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 10*time.Minute, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, "leadgen-cli/1.0", f.opts.UserAgent)
}

func TestForURL(t *testing.T) {
	src, err := ForURL("ftp://ftp2.census.gov/geo/tiger/file.zip")
	require.NoError(t, err)
	assert.IsType(t, &FTPFetcher{}, src)

	src, err = ForURL("https://www2.census.gov/geo/tiger/file.zip")
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, src)

	src, err = ForURL("http://www2.census.gov/geo/tiger/file.zip")
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, src)

	_, err = ForURL("gopher://example.com/file.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}
