package domain

import "math"

// Layer names, in canonical output order.
const (
	LayerCorrMean          = "corr_mean"
	LayerLagMean           = "lag_mean"
	LayerDriverRelTimeMean = "driver_rel_time_mean"
	LayerDominantSign      = "dominant_sign"
	LayerTimingCombo       = "timing_combo"
	LayerStrongSpan        = "strong_span"
	LayerStrongStart       = "strong_start"
	LayerNSelected         = "n_selected"
)

// LayerNames lists every layer in canonical order. The first four are the
// primary summary layers; the rest are supplementary descriptors.
var LayerNames = []string{
	LayerCorrMean,
	LayerLagMean,
	LayerDriverRelTimeMean,
	LayerDominantSign,
	LayerTimingCombo,
	LayerStrongSpan,
	LayerStrongStart,
	LayerNSelected,
}

// LayerGrid holds every summary layer over a lat/lon grid. Each layer is a
// flat row-major plane: index i*len(Lons)+j for latitude index i, longitude
// index j. Immutable once assembled by the grid driver.
type LayerGrid struct {
	Lats   []float64
	Lons   []float64
	Layers map[string][]float64
}

// NewLayerGrid allocates a grid for the given coordinates with every layer
// initialized to NaN.
func NewLayerGrid(lats, lons []float64) *LayerGrid {
	g := &LayerGrid{
		Lats:   lats,
		Lons:   lons,
		Layers: make(map[string][]float64, len(LayerNames)),
	}
	n := len(lats) * len(lons)
	for _, name := range LayerNames {
		plane := make([]float64, n)
		for k := range plane {
			plane[k] = math.NaN()
		}
		g.Layers[name] = plane
	}
	return g
}

// SetCell writes a cell summary into every layer at latitude index i,
// longitude index j.
func (g *LayerGrid) SetCell(i, j int, s CellSummary) {
	k := i*len(g.Lons) + j
	g.Layers[LayerCorrMean][k] = s.CorrMean
	g.Layers[LayerLagMean][k] = s.LagMean
	g.Layers[LayerDriverRelTimeMean][k] = s.DriverRelTimeMean
	g.Layers[LayerDominantSign][k] = s.DominantSign
	g.Layers[LayerTimingCombo][k] = s.TimingCombo
	g.Layers[LayerStrongSpan][k] = s.StrongSpan
	g.Layers[LayerStrongStart][k] = s.StrongStart
	g.Layers[LayerNSelected][k] = s.NSelected
}

// Cell reads the summary back out of the layer planes.
func (g *LayerGrid) Cell(i, j int) CellSummary {
	k := i*len(g.Lons) + j
	return CellSummary{
		CorrMean:          g.Layers[LayerCorrMean][k],
		LagMean:           g.Layers[LayerLagMean][k],
		DriverRelTimeMean: g.Layers[LayerDriverRelTimeMean][k],
		DominantSign:      g.Layers[LayerDominantSign][k],
		TimingCombo:       g.Layers[LayerTimingCombo][k],
		StrongSpan:        g.Layers[LayerStrongSpan][k],
		StrongStart:       g.Layers[LayerStrongStart][k],
		NSelected:         g.Layers[LayerNSelected][k],
	}
}

// ValidCells counts gridpoints with a populated summary.
func (g *LayerGrid) ValidCells() int {
	n := 0
	for _, v := range g.Layers[LayerDominantSign] {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
