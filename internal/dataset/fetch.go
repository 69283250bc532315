// Package dataset fetches, loads, and aligns the public climate inputs.
package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/AlFontal/sdcmap/internal/domain"
	"github.com/AlFontal/sdcmap/internal/observability"
)

// Source identifies one public dataset file.
type Source struct {
	Key string
	URL string
}

// Public data sources for the reference Nino3.4 vs SST demo.
var (
	SourceNino34 = Source{
		Key: "nino34_csv",
		URL: "https://psl.noaa.gov/data/correlation/nina34.anom.csv",
	}
	SourceERSSTv5 = Source{
		Key: "ersstv5_nc",
		URL: "https://raw.githubusercontent.com/pydata/xarray-data/master/ersstv5.nc",
	}
)

// PublicSources lists every dataset FetchAll retrieves.
var PublicSources = []Source{SourceNino34, SourceERSSTv5}

// Fetcher downloads dataset files into a local directory, reusing files that
// are already present and fresh. Freshness is judged against the injectable
// clock so tests can age the cache without sleeping.
type Fetcher struct {
	httpClient   *http.Client
	dataDir      string
	refreshAfter time.Duration // zero means cached files never expire
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewFetcher creates a Fetcher writing into dataDir.
func NewFetcher(dataDir string, timeout, refreshAfter time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		httpClient:   &http.Client{Timeout: timeout},
		dataDir:      dataDir,
		refreshAfter: refreshAfter,
		logger:       logger,
		metrics:      metrics,
	}
}

// FetchAll retrieves every public source and returns key -> local path.
func (f *Fetcher) FetchAll(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(PublicSources))
	for _, src := range PublicSources {
		path, err := f.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		out[src.Key] = path
	}
	return out, nil
}

// Fetch downloads src unless a fresh local copy exists, and returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (string, error) {
	dest := filepath.Join(f.dataDir, filepath.Base(src.URL))

	if f.fresh(dest) {
		f.metrics.Downloads.WithLabelValues(src.Key, "cached").Inc()
		f.logger.Debug("using cached dataset", "source", src.Key, "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	start := time.Now()
	if err := f.download(ctx, src.URL, dest); err != nil {
		f.metrics.Downloads.WithLabelValues(src.Key, "error").Inc()
		return "", fmt.Errorf("fetch %s: %w", src.Key, err)
	}
	f.metrics.Downloads.WithLabelValues(src.Key, "fetched").Inc()
	f.metrics.DownloadDuration.WithLabelValues(src.Key).Observe(time.Since(start).Seconds())
	f.logger.Info("dataset downloaded", "source", src.Key, "path", dest)
	return dest, nil
}

// fresh reports whether dest exists, is non-empty, and is younger than the
// refresh window.
func (f *Fetcher) fresh(dest string) bool {
	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return false
	}
	if f.refreshAfter <= 0 {
		return true
	}
	return domain.Clock().Now().Sub(info.ModTime()) < f.refreshAfter
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	// Write through a temp file so a failed download never shadows a good copy.
	tmp, err := os.CreateTemp(f.dataDir, filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}
