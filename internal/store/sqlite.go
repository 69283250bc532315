package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// RunParams records the configuration a layer grid was computed with.
type RunParams struct {
	FragmentSize  int
	NPermutations int
	TwoTailed     bool
	MinLag        int
	MaxLag        int
	Alpha         float64
	TopFraction   float64
	PeakDate      time.Time
}

// Catalog is a SQLite-backed history of computation runs and their per-cell
// summaries.
type Catalog struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	fragment_size INTEGER NOT NULL,
	n_permutations INTEGER NOT NULL,
	two_tailed INTEGER NOT NULL,
	min_lag INTEGER NOT NULL,
	max_lag INTEGER NOT NULL,
	alpha REAL NOT NULL,
	top_fraction REAL NOT NULL,
	peak_date TEXT NOT NULL,
	cells_total INTEGER NOT NULL,
	cells_valid INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cell_summaries (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	corr_mean REAL,
	lag_mean REAL,
	driver_rel_time_mean REAL,
	dominant_sign REAL,
	timing_combo REAL,
	strong_span REAL,
	strong_start REAL,
	n_selected REAL,
	PRIMARY KEY (run_id, lat, lon)
);
`

// OpenCatalog opens (creating if needed) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// RecordRun stores the run parameters and every valid cell summary, returning
// the new run's id. NaN summaries are stored as NULL columns.
func (c *Catalog) RecordRun(ctx context.Context, params RunParams, grid *domain.LayerGrid) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, fragment_size, n_permutations, two_tailed,
			min_lag, max_lag, alpha, top_fraction, peak_date, cells_total, cells_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		domain.Clock().Now().UTC().Format(time.RFC3339),
		params.FragmentSize, params.NPermutations, boolToInt(params.TwoTailed),
		params.MinLag, params.MaxLag, params.Alpha, params.TopFraction,
		params.PeakDate.Format("2006-01-02"),
		len(grid.Lats)*len(grid.Lons), grid.ValidCells(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cell_summaries (run_id, lat, lon, corr_mean, lag_mean,
			driver_rel_time_mean, dominant_sign, timing_combo, strong_span,
			strong_start, n_selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for i, lat := range grid.Lats {
		for j, lon := range grid.Lons {
			s := grid.Cell(i, j)
			if !s.Valid() {
				continue
			}
			_, err := stmt.ExecContext(ctx, runID, lat, lon,
				nullable(s.CorrMean), nullable(s.LagMean),
				nullable(s.DriverRelTimeMean), nullable(s.DominantSign),
				nullable(s.TimingCombo), nullable(s.StrongSpan),
				nullable(s.StrongStart), nullable(s.NSelected))
			if err != nil {
				return 0, fmt.Errorf("insert cell (%v,%v): %w", lat, lon, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID         int64
	StartedAt  time.Time
	Alpha      float64
	CellsTotal int
	CellsValid int
}

// Runs lists recorded runs, newest first.
func (c *Catalog) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, started_at, alpha, cells_total, cells_valid FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var startedAt string
		if err := rows.Scan(&r.ID, &startedAt, &r.Alpha, &r.CellsTotal, &r.CellsValid); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
