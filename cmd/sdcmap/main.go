// Command sdcmap runs the public-data SDC map demo end to end: fetch the
// driver and field datasets, align them, compute the summary layers for every
// gridpoint, persist the layer grid, and render the panel figure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	httpadapter "github.com/AlFontal/sdcmap/internal/adapter/http"
	"github.com/AlFontal/sdcmap/internal/config"
	"github.com/AlFontal/sdcmap/internal/dataset"
	"github.com/AlFontal/sdcmap/internal/domain"
	"github.com/AlFontal/sdcmap/internal/layers"
	"github.com/AlFontal/sdcmap/internal/observability"
	"github.com/AlFontal/sdcmap/internal/render"
	"github.com/AlFontal/sdcmap/internal/sdc"
	"github.com/AlFontal/sdcmap/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	dataDir := flag.String("data-dir", "", "override dataset cache directory")
	outDir := flag.String("out-dir", "", "override output directory")
	skipFetch := flag.Bool("skip-fetch", false, "use cached datasets only, never download")
	skipRender := flag.Bool("skip-render", false, "skip the PNG figure")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *skipFetch, *skipRender); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, skipFetch, skipRender bool) error {
	metrics := observability.NewMetrics()

	paths, err := datasetPaths(ctx, cfg, logger, metrics, skipFetch)
	if err != nil {
		return err
	}

	timeStart, _ := cfg.TimeStartDate()
	timeEnd, _ := cfg.TimeEndDate()
	peakDate, _ := cfg.PeakDateTime()

	driver, err := dataset.LoadDriverCSV(paths[dataset.SourceNino34.Key], timeStart, timeEnd)
	if err != nil {
		return fmt.Errorf("load driver: %w", err)
	}

	field, err := dataset.LoadField(paths[dataset.SourceERSSTv5.Key], dataset.FieldOptions{
		Variable:  "sst",
		TimeStart: timeStart,
		TimeEnd:   timeEnd,
		LatMin:    cfg.LatMin, LatMax: cfg.LatMax,
		LonMin: cfg.LonMin, LonMax: cfg.LonMax,
		LatStride: cfg.LatStride, LonStride: cfg.LonStride,
		Anomalies: true,
	})
	if err != nil {
		return fmt.Errorf("load field: %w", err)
	}

	aligned, err := dataset.AlignDriverToField(driver, field)
	if err != nil {
		return fmt.Errorf("align driver to field: %w", err)
	}
	peakIdx := dataset.PeakIndex(field.Times, peakDate)

	computer, err := sdc.New(sdc.Params{
		FragmentSize:  cfg.FragmentSize,
		MinLag:        cfg.MinLag,
		MaxLag:        cfg.MaxLag,
		NPermutations: cfg.NPermutations,
		TwoTailed:     cfg.TwoTailed,
		Seed:          cfg.Seed,
	})
	if err != nil {
		return fmt.Errorf("configure sdc: %w", err)
	}
	reducer, err := layers.NewReducer(cfg.Alpha, cfg.TopFraction, nil)
	if err != nil {
		return fmt.Errorf("configure reducer: %w", err)
	}

	gd := layers.NewGridDriver(computer, reducer, cfg.FragmentSize, cfg.Workers, logger, metrics)

	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, gd, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	grid, err := gd.Run(ctx, aligned, field, peakIdx)
	if err != nil {
		return fmt.Errorf("compute layers: %w", err)
	}

	ncPath := filepath.Join(cfg.OutDir, "sdcmap_layers.nc")
	if err := store.WriteLayersNetCDF(ncPath, grid); err != nil {
		return fmt.Errorf("write layers: %w", err)
	}
	logger.Info("layers written", "path", ncPath)

	if cfg.CatalogPath != "" {
		if err := recordRun(ctx, cfg, grid); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	if !skipRender {
		pngPath := filepath.Join(cfg.OutDir, "sdcmap_layers.png")
		if err := render.WriteLayerMapsPNG(pngPath, grid); err != nil {
			return fmt.Errorf("render layers: %w", err)
		}
		logger.Info("figure written", "path", pngPath)
	}
	return nil
}

func datasetPaths(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, skipFetch bool) (map[string]string, error) {
	if !skipFetch {
		fetcher := dataset.NewFetcher(cfg.DataDir, cfg.FetchTimeout, cfg.RefreshAfter, logger, metrics)
		paths, err := fetcher.FetchAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch datasets: %w", err)
		}
		return paths, nil
	}

	paths := make(map[string]string, len(dataset.PublicSources))
	for _, src := range dataset.PublicSources {
		p := filepath.Join(cfg.DataDir, filepath.Base(src.URL))
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("cached dataset %s missing: %w", src.Key, err)
		}
		paths[src.Key] = p
	}
	return paths, nil
}

func recordRun(ctx context.Context, cfg *config.Config, grid *domain.LayerGrid) error {
	catalog, err := store.OpenCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	peakDate, _ := cfg.PeakDateTime()
	_, err = catalog.RecordRun(ctx, store.RunParams{
		FragmentSize:  cfg.FragmentSize,
		NPermutations: cfg.NPermutations,
		TwoTailed:     cfg.TwoTailed,
		MinLag:        cfg.MinLag,
		MaxLag:        cfg.MaxLag,
		Alpha:         cfg.Alpha,
		TopFraction:   cfg.TopFraction,
		PeakDate:      peakDate,
	}, grid)
	return err
}
