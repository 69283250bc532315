package layers_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlFontal/sdcmap/internal/domain"
	"github.com/AlFontal/sdcmap/internal/layers"
)

func pairsFromR(rs []float64) []domain.PairResult {
	out := make([]domain.PairResult, len(rs))
	for i, r := range rs {
		out[i] = domain.PairResult{R: r, PValue: 0.01, Lag: i % 3, Start1: 10 + i}
	}
	return out
}

func mixedSignPool() []domain.PairResult {
	return pairsFromR([]float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.1, -0.9, -0.3, -0.2, -0.1})
}

func TestNewReducer_InvalidParams(t *testing.T) {
	tests := []struct {
		name        string
		alpha       float64
		topFraction float64
	}{
		{"zero alpha", 0, 0.25},
		{"negative alpha", -0.1, 0.25},
		{"alpha above one", 1.5, 0.25},
		{"zero top fraction", 0.05, 0},
		{"negative top fraction", 0.05, -1},
		{"top fraction above one", 0.05, 1.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := layers.NewReducer(tt.alpha, tt.topFraction, nil)
			assert.Error(t, err)
		})
	}
}

func TestReduce_SmallPoolsYieldNaN(t *testing.T) {
	// floor(6*0.25)=1 and floor(4*0.25)=1: neither sign retains two pairs.
	r, err := layers.NewReducer(0.05, 0.25, nil)
	require.NoError(t, err)

	s := r.Reduce(mixedSignPool(), 0)
	assertAllNaN(t, s)
}

func TestReduce_PositiveDominatesByMagnitude(t *testing.T) {
	// floor(6*0.5)=3 keeps {0.9,0.8,0.7}; floor(4*0.5)=2 keeps {-0.9,-0.3}.
	// |0.8| > |-0.6| so the positive set wins.
	r, err := layers.NewReducer(0.05, 0.5, nil)
	require.NoError(t, err)

	s := r.Reduce(mixedSignPool(), 0)
	require.True(t, s.Valid())
	assert.InDelta(t, 0.8, s.CorrMean, 1e-12)
	assert.Equal(t, 1.0, s.DominantSign)
	assert.Equal(t, 3.0, s.NSelected)
}

func TestReduce_EmptyInput(t *testing.T) {
	r, err := layers.NewReducer(0.05, 0.5, nil)
	require.NoError(t, err)

	assertAllNaN(t, r.Reduce(nil, 0))
	assertAllNaN(t, r.Reduce([]domain.PairResult{}, 0))
}

func TestReduce_NothingSignificant(t *testing.T) {
	r, err := layers.NewReducer(0.05, 1, nil)
	require.NoError(t, err)

	pairs := pairsFromR([]float64{0.9, 0.8, -0.7, -0.6})
	for i := range pairs {
		pairs[i].PValue = 0.2
	}
	assertAllNaN(t, r.Reduce(pairs, 0))
}

func TestReduce_NonFinitePairsIgnored(t *testing.T) {
	r, err := layers.NewReducer(0.05, 1, nil)
	require.NoError(t, err)

	pairs := pairsFromR([]float64{0.9, 0.8})
	pairs = append(pairs,
		domain.PairResult{R: math.NaN(), PValue: 0.01},
		domain.PairResult{R: math.Inf(1), PValue: 0.01},
		domain.PairResult{R: 0.5, PValue: math.NaN()},
	)

	s := r.Reduce(pairs, 0)
	require.True(t, s.Valid())
	assert.Equal(t, 2.0, s.NSelected)
	assert.InDelta(t, 0.85, s.CorrMean, 1e-12)
}

func TestReduce_ZeroCorrelationInNeitherSign(t *testing.T) {
	r, err := layers.NewReducer(0.05, 1, nil)
	require.NoError(t, err)

	pairs := pairsFromR([]float64{0, 0, 0, 0})
	assertAllNaN(t, r.Reduce(pairs, 0))
}

func TestReduce_SingleEligibleSign(t *testing.T) {
	r, err := layers.NewReducer(0.05, 1, nil)
	require.NoError(t, err)

	pairs := pairsFromR([]float64{-0.5, -0.4, -0.3, 0.9})
	s := r.Reduce(pairs, 0)
	require.True(t, s.Valid())
	assert.Equal(t, -1.0, s.DominantSign)
	assert.InDelta(t, -0.4, s.CorrMean, 1e-12)
}

func TestReduce_TieBreaksPositive(t *testing.T) {
	r, err := layers.NewReducer(0.05, 1, nil)
	require.NoError(t, err)

	pairs := pairsFromR([]float64{0.6, 0.4, -0.6, -0.4})
	s := r.Reduce(pairs, 0)
	require.True(t, s.Valid())
	assert.Equal(t, 1.0, s.DominantSign)
	assert.InDelta(t, 0.5, s.CorrMean, 1e-12)
}

func TestReduce_DominanceByCount(t *testing.T) {
	// Three weak negatives against two strong positives: the count rule
	// flips the outcome relative to the magnitude rule.
	pairs := pairsFromR([]float64{0.9, 0.8, -0.3, -0.2, -0.1})

	byMagnitude, err := layers.NewReducer(0.05, 1, layers.DominanceByMagnitude)
	require.NoError(t, err)
	byCount, err := layers.NewReducer(0.05, 1, layers.DominanceByCount)
	require.NoError(t, err)

	assert.Equal(t, 1.0, byMagnitude.Reduce(pairs, 0).DominantSign)
	assert.Equal(t, -1.0, byCount.Reduce(pairs, 0).DominantSign)
}

func TestReduce_OrderInvariantWithoutTies(t *testing.T) {
	r, err := layers.NewReducer(0.05, 0.5, nil)
	require.NoError(t, err)

	pairs := mixedSignPool()
	reversed := make([]domain.PairResult, len(pairs))
	for i, p := range pairs {
		reversed[len(pairs)-1-i] = p
	}

	a := r.Reduce(pairs, 0)
	b := r.Reduce(reversed, 0)
	assert.Equal(t, a, b)
}

func TestReduce_StableUnderAbsTies(t *testing.T) {
	r, err := layers.NewReducer(0.05, 0.5, nil)
	require.NoError(t, err)

	// Four equal |R| values: floor(4*0.5)=2 keeps the first two in input
	// order, so Start1 of the selection is reproducible.
	pairs := []domain.PairResult{
		{R: 0.5, PValue: 0.01, Start1: 1},
		{R: 0.5, PValue: 0.01, Start1: 2},
		{R: 0.5, PValue: 0.01, Start1: 3},
		{R: 0.5, PValue: 0.01, Start1: 4},
	}
	s := r.Reduce(pairs, 0)
	require.True(t, s.Valid())
	assert.InDelta(t, 1.5, s.DriverRelTimeMean, 1e-12)
}

func TestReduce_SummaryFields(t *testing.T) {
	r, err := layers.NewReducer(0.05, 1, nil)
	require.NoError(t, err)

	pairs := []domain.PairResult{
		{R: 0.8, PValue: 0.01, Lag: 2, Start1: 30},
		{R: 0.6, PValue: 0.01, Lag: 4, Start1: 34},
	}
	s := r.Reduce(pairs, 24)
	require.True(t, s.Valid())

	assert.InDelta(t, 0.7, s.CorrMean, 1e-12)
	assert.InDelta(t, 3, s.LagMean, 1e-12)
	assert.InDelta(t, 8, s.DriverRelTimeMean, 1e-12) // mean(30-24, 34-24)
	assert.InDelta(t, 11, s.TimingCombo, 1e-12)
	assert.InDelta(t, 4, s.StrongSpan, 1e-12) // 10-6
	assert.InDelta(t, 6, s.StrongStart, 1e-12)
	assert.Equal(t, 1.0, s.DominantSign)
	assert.Equal(t, 2.0, s.NSelected)
}

func TestReduce_CorrMeanWithinBoundsAndSignConsistent(t *testing.T) {
	r, err := layers.NewReducer(0.1, 0.5, nil)
	require.NoError(t, err)

	pools := [][]float64{
		{0.9, 0.7, 0.5, 0.3, -0.8, -0.6},
		{-0.99, -0.98, -0.97, -0.2, 0.1},
		{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8},
	}
	for _, rs := range pools {
		s := r.Reduce(pairsFromR(rs), 0)
		if !s.Valid() {
			continue
		}
		assert.GreaterOrEqual(t, s.CorrMean, -1.0)
		assert.LessOrEqual(t, s.CorrMean, 1.0)
		assert.Equal(t, math.Signbit(s.DominantSign), math.Signbit(s.CorrMean))
	}
}

func assertAllNaN(t *testing.T, s domain.CellSummary) {
	t.Helper()
	assert.True(t, math.IsNaN(s.CorrMean), "CorrMean = %v", s.CorrMean)
	assert.True(t, math.IsNaN(s.LagMean), "LagMean = %v", s.LagMean)
	assert.True(t, math.IsNaN(s.DriverRelTimeMean), "DriverRelTimeMean = %v", s.DriverRelTimeMean)
	assert.True(t, math.IsNaN(s.DominantSign), "DominantSign = %v", s.DominantSign)
	assert.True(t, math.IsNaN(s.TimingCombo), "TimingCombo = %v", s.TimingCombo)
	assert.True(t, math.IsNaN(s.StrongSpan), "StrongSpan = %v", s.StrongSpan)
	assert.True(t, math.IsNaN(s.StrongStart), "StrongStart = %v", s.StrongStart)
	assert.True(t, math.IsNaN(s.NSelected), "NSelected = %v", s.NSelected)
	assert.False(t, s.Valid())
}
