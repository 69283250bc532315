// Package store persists layer grids: a NetCDF artifact per run plus a
// SQLite catalog of run parameters and per-cell summaries.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// WriteLayersNetCDF writes every layer of the grid, plus lat/lon coordinate
// variables, to a classic-format NetCDF file at path. Parent directories are
// created as needed.
func WriteLayersNetCDF(path string, grid *domain.LayerGrid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	h := cdf.NewHeader([]string{"lat", "lon"}, []int{len(grid.Lats), len(grid.Lons)})
	h.AddAttribute("", "title", "SDC summary layers")
	h.AddAttribute("", "source", "sdcmap")

	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")

	for _, name := range domain.LayerNames {
		h.AddVariable(name, []string{"lat", "lon"}, []float64{0})
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create netcdf: %w", err)
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("write netcdf header: %w", err)
	}

	if err := writeVar(nc, "lat", grid.Lats); err != nil {
		return err
	}
	if err := writeVar(nc, "lon", grid.Lons); err != nil {
		return err
	}
	for _, name := range domain.LayerNames {
		if err := writeVar(nc, name, grid.Layers[name]); err != nil {
			return err
		}
	}

	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("finalize netcdf: %w", err)
	}
	return nil
}

func writeVar(nc *cdf.File, name string, data []float64) error {
	end := nc.Header.Lengths(name)
	start := make([]int, len(end))
	w := nc.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write variable %s: %w", name, err)
	}
	return nil
}
