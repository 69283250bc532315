package domain

import (
	"math"
	"time"
)

// PairResult is one fragment-pair outcome from the SDC computation: the
// correlation between a driver fragment starting at Start1 and a local
// fragment starting at Start2, at lag Start1-Start2.
type PairResult struct {
	R      float64
	PValue float64
	Lag    int
	Start1 int
	Start2 int
}

// Series is a time-indexed scalar sequence with monthly resolution.
// Times and Values always have equal length and Times is strictly increasing.
type Series struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Values) }

// Field is a gridded variable with dimensions (time, lat, lon). Values is
// row-major over (time, lat, lon): index t*len(Lats)*len(Lons) + i*len(Lons) + j.
type Field struct {
	Times  []time.Time
	Lats   []float64
	Lons   []float64
	Values []float64
}

// At returns the value at time index t, latitude index i, longitude index j.
func (f Field) At(t, i, j int) float64 {
	return f.Values[(t*len(f.Lats)+i)*len(f.Lons)+j]
}

// CellSeries extracts the local time series at latitude index i, longitude
// index j as a fresh slice.
func (f Field) CellSeries(i, j int) []float64 {
	out := make([]float64, len(f.Times))
	for t := range f.Times {
		out[t] = f.At(t, i, j)
	}
	return out
}

// CellSummary is the reduced outcome for one gridpoint. Either every field is
// finite and DominantSign is +1 or -1, or every field is NaN.
type CellSummary struct {
	CorrMean          float64
	LagMean           float64
	DriverRelTimeMean float64
	DominantSign      float64

	// Supplementary timing and extent descriptors of the selected set.
	TimingCombo float64
	StrongSpan  float64
	StrongStart float64
	NSelected   float64
}

// InvalidCellSummary returns the all-NaN summary used for gridpoints with no
// selectable extreme set.
func InvalidCellSummary() CellSummary {
	nan := math.NaN()
	return CellSummary{
		CorrMean:          nan,
		LagMean:           nan,
		DriverRelTimeMean: nan,
		DominantSign:      nan,
		TimingCombo:       nan,
		StrongSpan:        nan,
		StrongStart:       nan,
		NSelected:         nan,
	}
}

// Valid reports whether the summary carries data. All fields are populated
// together, so checking one suffices.
func (c CellSummary) Valid() bool { return !math.IsNaN(c.DominantSign) }
