package dataset

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlFontal/sdcmap/internal/domain"
	"github.com/AlFontal/sdcmap/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(dir string, refreshAfter time.Duration) *Fetcher {
	return NewFetcher(dir, 5*time.Second, refreshAfter, testLogger(), observability.NewMetricsForTesting())
}

func TestFetch_DownloadsAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		io.WriteString(w, "date,value\n2014-01-01,0.5\n")
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := newTestFetcher(dir, 0)
	src := Source{Key: "test_csv", URL: srv.URL + "/demo.csv"}

	path, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "demo.csv"), path)
	assert.Equal(t, int32(1), hits.Load())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "2014-01-01")

	// Second fetch must not touch the network.
	_, err = f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_RefreshAfterExpiry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	fake := clockwork.NewFakeClockAt(time.Now())
	domain.SetClock(fake)
	defer domain.SetClock(nil)

	f := newTestFetcher(t.TempDir(), time.Hour)
	src := Source{Key: "test_csv", URL: srv.URL + "/demo.csv"}

	_, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	// Still fresh.
	fake.Advance(30 * time.Minute)
	_, err = f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	// Aged out.
	fake.Advance(2 * time.Hour)
	_, err = f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_EmptyCachedFileRedownloaded(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.csv"), nil, 0o644))

	f := newTestFetcher(dir, 0)
	_, err := f.Fetch(context.Background(), Source{Key: "test_csv", URL: srv.URL + "/demo.csv"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(t.TempDir(), 0)
	_, err := f.Fetch(context.Background(), Source{Key: "test_csv", URL: srv.URL + "/demo.csv"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "status 403")

	// A failed download must not leave a partial file behind.
	entries, err := os.ReadDir(f.dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t.TempDir(), 0)
	_, err := f.Fetch(ctx, Source{Key: "test_csv", URL: srv.URL + "/demo.csv"})
	assert.Error(t, err)
}
