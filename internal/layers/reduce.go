// Package layers reduces per-gridpoint SDC pair results into summary layers
// and drives that reduction across a lat/lon grid.
package layers

import (
	"fmt"
	"math"
	"sort"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// Selection is a sign-homogeneous set of pairs chosen for averaging, together
// with the driver-relative start time of each pair.
type Selection struct {
	Pairs    []domain.PairResult
	RelStart []float64
}

// MeanR returns the mean correlation of the selection.
func (s Selection) MeanR() float64 {
	sum := 0.0
	for _, p := range s.Pairs {
		sum += p.R
	}
	return sum / float64(len(s.Pairs))
}

// DominanceRule chooses between a positive and a negative selection when both
// are eligible. Both arguments are non-empty. A true result picks the
// positive selection. Which metric should decide dominance is unresolved in
// the literature, so the rule is injectable rather than fixed.
type DominanceRule func(pos, neg Selection) bool

// DominanceByMagnitude picks the selection with the larger absolute mean
// correlation. Exact ties go to the positive selection.
func DominanceByMagnitude(pos, neg Selection) bool {
	return math.Abs(pos.MeanR()) >= math.Abs(neg.MeanR())
}

// DominanceByCount picks the selection with more pairs. Ties go to the
// positive selection.
func DominanceByCount(pos, neg Selection) bool {
	return len(pos.Pairs) >= len(neg.Pairs)
}

// Reducer turns the pair results of one gridpoint into a CellSummary.
// It is pure and safe for concurrent use.
type Reducer struct {
	alpha       float64
	topFraction float64
	dominance   DominanceRule
}

// NewReducer validates the reduction parameters and returns a Reducer.
// A nil dominance rule selects DominanceByMagnitude.
func NewReducer(alpha, topFraction float64, dominance DominanceRule) (*Reducer, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("alpha must be in (0,1], got %v", alpha)
	}
	if !(topFraction > 0 && topFraction <= 1) {
		return nil, fmt.Errorf("top fraction must be in (0,1], got %v", topFraction)
	}
	if dominance == nil {
		dominance = DominanceByMagnitude
	}
	return &Reducer{alpha: alpha, topFraction: topFraction, dominance: dominance}, nil
}

// Reduce computes the cell summary for one gridpoint's pair results.
// peakIdx is the time index of the reference event; driver-relative times are
// measured against it. The result is either fully populated with DominantSign
// in {-1,+1}, or all-NaN when no sign yields an eligible selection.
func (r *Reducer) Reduce(pairs []domain.PairResult, peakIdx int) domain.CellSummary {
	var pos, neg []domain.PairResult
	for _, p := range pairs {
		if math.IsNaN(p.R) || math.IsInf(p.R, 0) || math.IsNaN(p.PValue) {
			continue
		}
		if p.PValue > r.alpha {
			continue
		}
		switch {
		case p.R > 0:
			pos = append(pos, p)
		case p.R < 0:
			neg = append(neg, p)
		}
	}

	selPos, okPos := selectTop(pos, r.topFraction, peakIdx)
	selNeg, okNeg := selectTop(neg, r.topFraction, peakIdx)

	var chosen Selection
	var sign float64
	switch {
	case !okPos && !okNeg:
		return domain.InvalidCellSummary()
	case okPos && !okNeg:
		chosen, sign = selPos, 1
	case !okPos && okNeg:
		chosen, sign = selNeg, -1
	case r.dominance(selPos, selNeg):
		chosen, sign = selPos, 1
	default:
		chosen, sign = selNeg, -1
	}

	return summarize(chosen, sign)
}

// selectTop keeps the floor(len*fraction) pairs with the largest |R|, stable
// under ties so a fixed input order reproduces the same selection. Fewer than
// two retained pairs is not a usable selection.
func selectTop(pairs []domain.PairResult, fraction float64, peakIdx int) (Selection, bool) {
	c := int(math.Floor(float64(len(pairs)) * fraction))
	if c < 2 {
		return Selection{}, false
	}

	ranked := make([]domain.PairResult, len(pairs))
	copy(ranked, pairs)
	sort.SliceStable(ranked, func(a, b int) bool {
		return math.Abs(ranked[a].R) > math.Abs(ranked[b].R)
	})
	ranked = ranked[:c]

	rel := make([]float64, c)
	for i, p := range ranked {
		rel[i] = float64(p.Start1 - peakIdx)
	}
	return Selection{Pairs: ranked, RelStart: rel}, true
}

func summarize(sel Selection, sign float64) domain.CellSummary {
	n := float64(len(sel.Pairs))

	var sumLag float64
	for _, p := range sel.Pairs {
		sumLag += float64(p.Lag)
	}

	relMean, relMin, relMax := sel.RelStart[0], sel.RelStart[0], sel.RelStart[0]
	sumRel := 0.0
	for _, v := range sel.RelStart {
		sumRel += v
		relMin = math.Min(relMin, v)
		relMax = math.Max(relMax, v)
	}
	relMean = sumRel / n

	lagMean := sumLag / n
	return domain.CellSummary{
		CorrMean:          sel.MeanR(),
		LagMean:           lagMean,
		DriverRelTimeMean: relMean,
		DominantSign:      sign,
		TimingCombo:       relMean + lagMean,
		StrongSpan:        relMax - relMin,
		StrongStart:       relMin,
		NSelected:         n,
	}
}
