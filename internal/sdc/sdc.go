// Package sdc computes scale-dependent correlation between two aligned time
// series: Pearson correlation over every fragment pair within the configured
// lag bounds, with permutation-test significance.
package sdc

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// Params configures the fragment-pair computation.
type Params struct {
	FragmentSize  int
	MinLag        int
	MaxLag        int
	NPermutations int
	TwoTailed     bool

	// Seed makes permutation p-values reproducible across runs and across
	// worker scheduling. Each fragment pair derives its own generator from it.
	Seed int64
}

// Computer enumerates fragment pairs and scores each one. Safe for concurrent
// use: all mutable state is per-call.
type Computer struct {
	p Params
}

// New validates params and returns a Computer.
func New(p Params) (*Computer, error) {
	if p.FragmentSize < 3 {
		return nil, fmt.Errorf("fragment size must be at least 3, got %d", p.FragmentSize)
	}
	if p.MinLag > p.MaxLag {
		return nil, fmt.Errorf("lag bounds inverted: [%d,%d]", p.MinLag, p.MaxLag)
	}
	if p.NPermutations < 1 {
		return nil, fmt.Errorf("permutation count must be positive, got %d", p.NPermutations)
	}
	return &Computer{p: p}, nil
}

// Compute returns one PairResult per fragment pair of driver and local whose
// lag (driver start minus local start) lies within the configured bounds.
// Both series must have equal length and no missing values.
func (c *Computer) Compute(ctx context.Context, driver, local []float64) ([]domain.PairResult, error) {
	if len(driver) != len(local) {
		return nil, fmt.Errorf("series lengths differ: %d vs %d", len(driver), len(local))
	}
	s := c.p.FragmentSize
	n := len(driver)
	if n < s {
		return nil, fmt.Errorf("series length %d shorter than fragment size %d", n, s)
	}

	var out []domain.PairResult
	for start1 := 0; start1+s <= n; start1++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lo := start1 - c.p.MaxLag
		hi := start1 - c.p.MinLag
		for start2 := max(lo, 0); start2 <= hi && start2+s <= n; start2++ {
			frag1 := driver[start1 : start1+s]
			frag2 := local[start2 : start2+s]

			r := stat.Correlation(frag1, frag2, nil)
			if math.IsNaN(r) {
				// Constant fragment; no correlation is defined.
				continue
			}

			out = append(out, domain.PairResult{
				R:      r,
				PValue: c.permutationP(frag1, frag2, r, start1, start2),
				Lag:    start1 - start2,
				Start1: start1,
				Start2: start2,
			})
		}
	}
	return out, nil
}

// permutationP estimates the significance of r by shuffling the local
// fragment. Uses the standard (k+1)/(N+1) estimator so p is never zero.
func (c *Computer) permutationP(frag1, frag2 []float64, r float64, start1, start2 int) float64 {
	rng := rand.New(rand.NewSource(c.p.Seed ^ pairSeed(start1, start2)))

	shuffled := make([]float64, len(frag2))
	copy(shuffled, frag2)

	extreme := 0
	for i := 0; i < c.p.NPermutations; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		rp := stat.Correlation(frag1, shuffled, nil)
		if isAsExtreme(rp, r, c.p.TwoTailed) {
			extreme++
		}
	}
	return float64(extreme+1) / float64(c.p.NPermutations+1)
}

func isAsExtreme(rp, r float64, twoTailed bool) bool {
	if twoTailed {
		return math.Abs(rp) >= math.Abs(r)
	}
	if r >= 0 {
		return rp >= r
	}
	return rp <= r
}

// pairSeed mixes the fragment offsets into a stable per-pair seed component
// (splitmix64 finalizer).
func pairSeed(start1, start2 int) int64 {
	z := uint64(start1)<<32 | uint64(uint32(start2))
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
