package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// AlignDriverToField reindexes the driver series onto the field's timestamps.
// Every field timestamp must be present in the driver; a gap means the two
// datasets do not cover the same months and is an error, per the alignment
// precondition the grid driver relies on.
func AlignDriverToField(driver domain.Series, field domain.Field) (domain.Series, error) {
	byTime := make(map[time.Time]float64, driver.Len())
	for i, t := range driver.Times {
		byTime[t.UTC().Truncate(24*time.Hour)] = driver.Values[i]
	}

	out := domain.Series{
		Times:  field.Times,
		Values: make([]float64, len(field.Times)),
	}
	for i, t := range field.Times {
		v, ok := byTime[t.UTC().Truncate(24*time.Hour)]
		if !ok {
			return domain.Series{}, fmt.Errorf("driver has no sample for field timestamp %s", t.Format("2006-01-02"))
		}
		out.Values[i] = v
	}
	return out, nil
}

// PeakIndex returns the index of the field timestamp closest to the reference
// event date.
func PeakIndex(times []time.Time, peak time.Time) int {
	best, bestDiff := 0, math.Inf(1)
	for i, t := range times {
		d := math.Abs(t.Sub(peak).Hours())
		if d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}
