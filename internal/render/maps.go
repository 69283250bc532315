// Package render draws layer grids as heatmap panels.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// panelDef describes one heatmap panel. Zero vmin/vmax with autoscale=true
// derive the range from the data.
type panelDef struct {
	layer     string
	title     string
	vmin      float64
	vmax      float64
	autoscale bool
	colors    int
}

// panels are the four primary summary layers, in reading order.
var panels = []panelDef{
	{layer: domain.LayerCorrMean, title: "Mean extreme correlation", vmin: -1, vmax: 1, colors: 255},
	{layer: domain.LayerLagMean, title: "Mean lag (months)", autoscale: true, colors: 255},
	{layer: domain.LayerDriverRelTimeMean, title: "Mean driver-relative time (months)", autoscale: true, colors: 255},
	{layer: domain.LayerDominantSign, title: "Dominant sign (+1/-1)", vmin: -1, vmax: 1, colors: 2},
}

// WriteLayerMapsPNG renders the four primary layers as a 2x2 panel figure and
// writes it as a PNG at path.
func WriteLayerMapsPNG(path string, grid *domain.LayerGrid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	const rows, cols = 2, 2
	plots := make([][]*plot.Plot, rows)
	for i := range plots {
		plots[i] = make([]*plot.Plot, cols)
	}

	for k, def := range panels {
		p, err := panelPlot(grid, def)
		if err != nil {
			return fmt.Errorf("panel %s: %w", def.layer, err)
		}
		plots[k/cols][k%cols] = p
	}

	img := vgimg.New(28*vg.Centimeter, 16*vg.Centimeter)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter * 2, PadY: vg.Millimeter * 2,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter,
		PadLeft: vg.Millimeter, PadRight: vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if plots[i][j] != nil {
				plots[i][j].Draw(canvases[i][j])
			}
		}
	}

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func panelPlot(grid *domain.LayerGrid, def panelDef) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = def.title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	g := newGridXYZ(grid, def.layer)

	vmin, vmax := def.vmin, def.vmax
	if def.autoscale {
		vmin, vmax = finiteRange(grid.Layers[def.layer])
	}
	if vmin == vmax {
		vmin, vmax = vmin-0.5, vmax+0.5
	}

	h := plotter.NewHeatMap(g, moreland.SmoothBlueRed().Palette(def.colors))
	h.Min = vmin
	h.Max = vmax
	h.NaN = color.Transparent
	p.Add(h)
	return p, nil
}

// finiteRange returns the min and max of the finite values, or a unit range
// when the layer is entirely NaN.
func finiteRange(data []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return -1, 1
	}
	return lo, hi
}

// gridXYZ adapts one layer plane to plotter.GridXYZ, reordering both axes to
// ascending coordinates as the heatmap requires.
type gridXYZ struct {
	data   []float64
	lats   []float64
	lons   []float64
	latIdx []int
	lonIdx []int
}

func newGridXYZ(grid *domain.LayerGrid, layer string) gridXYZ {
	return gridXYZ{
		data:   grid.Layers[layer],
		lats:   grid.Lats,
		lons:   grid.Lons,
		latIdx: ascending(grid.Lats),
		lonIdx: ascending(grid.Lons),
	}
}

func ascending(coords []float64) []int {
	idx := make([]int, len(coords))
	for i := range idx {
		idx[i] = i
	}
	// Coordinates arrive either ascending or descending; reverse if needed.
	if len(coords) > 1 && coords[0] > coords[len(coords)-1] {
		for a, b := 0, len(idx)-1; a < b; a, b = a+1, b-1 {
			idx[a], idx[b] = idx[b], idx[a]
		}
	}
	return idx
}

func (g gridXYZ) Dims() (c, r int) { return len(g.lons), len(g.lats) }

func (g gridXYZ) Z(c, r int) float64 {
	return g.data[g.latIdx[r]*len(g.lons)+g.lonIdx[c]]
}

func (g gridXYZ) X(c int) float64 { return g.lons[g.lonIdx[c]] }
func (g gridXYZ) Y(r int) float64 { return g.lats[g.latIdx[r]] }
