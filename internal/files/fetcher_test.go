package files_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgate/internal/apperr"
	"postgate/internal/files"
	"postgate/internal/logger"
)

// countingTransport counts round trips and forwards to the default transport.
type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func newFetcher(t *testing.T, maxSize int64) (*files.Fetcher, *files.Scratch, *countingTransport) {
	t.Helper()
	scratch, err := files.NewScratch(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)

	rt := &countingTransport{}
	f := files.NewFetcher(scratch, 5*time.Second, maxSize, logger.Discard(),
		files.WithHTTPClient(&http.Client{Transport: rt, Timeout: 5 * time.Second}),
	)
	return f, scratch, rt
}

func scratchEntries(t *testing.T, scratch *files.Scratch) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(scratch.Dir())
	require.NoError(t, err)
	return entries
}

func TestFetchRejectsUnsupportedSchemesWithoutNetwork(t *testing.T) {
	t.Parallel()

	f, scratch, rt := newFetcher(t, 1024)

	for _, raw := range []string{"ftp://example.com/a.jpg", "file:///etc/passwd", "example.com/a.jpg", "http:///nohost.jpg", "::bad"} {
		_, _, err := f.Fetch(context.Background(), raw)
		require.ErrorIs(t, err, files.ErrUnsupportedURL, raw)
		assert.Equal(t, apperr.KindDownload, apperr.KindOf(err))
		assert.Equal(t, http.StatusInternalServerError, apperr.Status(err))
	}

	assert.Zero(t, rt.calls.Load())
	assert.Empty(t, scratchEntries(t, scratch))
}

func TestFetchStoresBodyWithSanitizedExtension(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake image bytes"))
	}))
	defer srv.Close()

	f, scratch, _ := newFetcher(t, 1024)

	cases := map[string]string{
		"/pic.JPG?x=1":       "jpg",
		"/photo.webp":        "webp",
		"/noext":             files.DefaultExtension,
		"/weird.jp-g":        files.DefaultExtension,
		"/long.abcdefgh":     files.DefaultExtension,
		"/dir.png/file":      files.DefaultExtension,
		"/%2e%2e%2fetc.pass": "pass",
	}
	for p, wantExt := range cases {
		local, cleanup, err := f.Fetch(context.Background(), srv.URL+p)
		require.NoError(t, err, p)

		assert.Equal(t, scratch.Dir(), filepath.Dir(local))
		assert.Equal(t, "."+wantExt, filepath.Ext(local), p)
		name := strings.TrimSuffix(filepath.Base(local), filepath.Ext(local))
		assert.Len(t, name, 32)

		data, err := os.ReadFile(local)
		require.NoError(t, err)
		assert.Equal(t, "fake image bytes", string(data))

		cleanup()
		_, err = os.Stat(local)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestFetchNon2xxLeavesNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f, scratch, _ := newFetcher(t, 1024)

	_, cleanup, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	require.Error(t, err)
	assert.Nil(t, cleanup)
	assert.Equal(t, apperr.KindDownload, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "404")
	assert.Empty(t, scratchEntries(t, scratch))
}

func TestFetchEmptyBodyFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, scratch, _ := newFetcher(t, 1024)

	_, _, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDownload, apperr.KindOf(err))
	assert.Empty(t, scratchEntries(t, scratch))
}

func TestFetchEnforcesMaxSize(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("x", 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// chunked, so the size is only discovered while streaming
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f, scratch, _ := newFetcher(t, 1024)

	_, _, err := f.Fetch(context.Background(), srv.URL+"/big.jpg")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDownload, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "exceeds")
	assert.Empty(t, scratchEntries(t, scratch))
}

func TestFetchNetworkFailureIsDownloadError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f, scratch, _ := newFetcher(t, 1024)

	_, _, err := f.Fetch(context.Background(), url+"/a.jpg")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDownload, apperr.KindOf(err))
	assert.Empty(t, scratchEntries(t, scratch))
}
