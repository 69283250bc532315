package layers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlFontal/sdcmap/internal/domain"
	"github.com/AlFontal/sdcmap/internal/observability"
)

// Computer produces SDC pair results for one driver/local series pair.
// Implementations must be safe for concurrent use across gridpoints.
type Computer interface {
	Compute(ctx context.Context, driver, local []float64) ([]domain.PairResult, error)
}

// Skip reasons recorded in metrics when a gridpoint is left NaN without
// running the SDC computation.
const (
	SkipShortSeries = "short_series"
	SkipFlatSeries  = "flat_series"
	SkipMissingData = "missing_data"
	SkipNoSelection = "no_selection"
)

// GridDriver maps the per-cell computation and reduction over every gridpoint
// of an aligned field. Cells are independent, so the driver fans them out to
// a worker pool; each worker writes to disjoint grid offsets.
type GridDriver struct {
	computer     Computer
	reducer      *Reducer
	fragmentSize int
	workers      int
	logger       *slog.Logger
	metrics      *observability.Metrics

	done  atomic.Int64
	total atomic.Int64
}

// NewGridDriver creates a driver. workers <= 0 selects GOMAXPROCS.
func NewGridDriver(c Computer, r *Reducer, fragmentSize, workers int, logger *slog.Logger, metrics *observability.Metrics) *GridDriver {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &GridDriver{
		computer:     c,
		reducer:      r,
		fragmentSize: fragmentSize,
		workers:      workers,
		logger:       logger,
		metrics:      metrics,
	}
}

// Progress returns processed and total cell counts for the current run.
func (d *GridDriver) Progress() (done, total int64) {
	return d.done.Load(), d.total.Load()
}

// Run computes the layer grid for the driver series over every gridpoint of
// the field. The driver must already be aligned to the field's timestamps.
// peakIdx is the time index of the reference event. Cancelling the context
// stops the run and returns the context error.
func (d *GridDriver) Run(ctx context.Context, driver domain.Series, field domain.Field, peakIdx int) (*domain.LayerGrid, error) {
	if driver.Len() != len(field.Times) {
		return nil, fmt.Errorf("driver has %d samples but field has %d timestamps", driver.Len(), len(field.Times))
	}
	if peakIdx < 0 || peakIdx >= len(field.Times) {
		return nil, fmt.Errorf("peak index %d outside time range [0,%d)", peakIdx, len(field.Times))
	}

	nlat, nlon := len(field.Lats), len(field.Lons)
	grid := domain.NewLayerGrid(field.Lats, field.Lons)

	d.total.Store(int64(nlat * nlon))
	d.done.Store(0)
	d.metrics.ComputeRunning.Set(1)
	defer d.metrics.ComputeRunning.Set(0)

	start := time.Now()
	d.logger.Info("grid computation started",
		"cells", nlat*nlon, "workers", d.workers, "peak_idx", peakIdx)

	type cell struct{ i, j int }
	cells := make(chan cell)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range cells {
				if err := d.processCell(runCtx, grid, driver.Values, field, c.i, c.j, peakIdx); err != nil {
					cancel(err)
					return
				}
			}
		}()
	}

feed:
	for i := 0; i < nlat; i++ {
		for j := 0; j < nlon; j++ {
			select {
			case cells <- cell{i, j}:
			case <-runCtx.Done():
				break feed
			}
		}
	}
	close(cells)
	wg.Wait()

	if err := context.Cause(runCtx); err != nil {
		return nil, err
	}

	d.logger.Info("grid computation finished",
		"cells", nlat*nlon, "valid", grid.ValidCells(), "elapsed", time.Since(start))
	return grid, nil
}

func (d *GridDriver) processCell(ctx context.Context, grid *domain.LayerGrid, driver []float64, field domain.Field, i, j, peakIdx int) error {
	defer func() {
		d.done.Add(1)
		d.metrics.CellsComputed.Inc()
	}()

	local := field.CellSeries(i, j)
	if reason, ok := usable(driver, local, d.fragmentSize); !ok {
		d.metrics.CellsSkipped.WithLabelValues(reason).Inc()
		return nil
	}

	start := time.Now()
	pairs, err := d.computer.Compute(ctx, driver, local)
	if err != nil {
		return fmt.Errorf("cell (%d,%d): %w", i, j, err)
	}
	d.metrics.PairsEvaluated.Add(float64(len(pairs)))

	summary := d.reducer.Reduce(pairs, peakIdx)
	d.metrics.CellDuration.Observe(time.Since(start).Seconds())

	if !summary.Valid() {
		d.metrics.CellsSkipped.WithLabelValues(SkipNoSelection).Inc()
		return nil
	}

	d.metrics.CellsValid.Inc()
	grid.SetCell(i, j, summary)
	return nil
}

// usable applies the per-cell preconditions: enough finite local samples to
// fragment, non-constant local series, and no gaps in either series.
func usable(driver, local []float64, fragmentSize int) (string, bool) {
	finite := 0
	for _, v := range local {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite++
		}
	}
	if finite < fragmentSize+3 {
		return SkipShortSeries, false
	}
	if finite != len(local) {
		return SkipMissingData, false
	}
	for _, v := range driver {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SkipMissingData, false
		}
	}

	first := local[0]
	flat := true
	for _, v := range local[1:] {
		if v != first {
			flat = false
			break
		}
	}
	if flat {
		return SkipFlatSeries, false
	}
	return "", true
}
