// Command gendemo writes a synthetic driver CSV and field NetCDF into the
// dataset cache directory, shaped like the public Nino3.4 and ERSSTv5 inputs.
// It lets sdcmap -skip-fetch run fully offline: the field contains a region
// responding to the driver with a positive lagged signal, a region with a
// negative one, and noise elsewhere, so the rendered layers have structure.
//
// Usage:
//
//	go run ./cmd/gendemo -data-dir .data -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"
)

var (
	startMonth = time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC)
	peakMonth  = time.Date(2015, time.November, 1, 0, 0, 0, 0, time.UTC)
	ncEpoch    = time.Date(1800, time.January, 1, 0, 0, 0, 0, time.UTC)
)

const nMonths = 60

func main() {
	dataDir := flag.String("data-dir", ".data", "directory to write the demo datasets into")
	seed := flag.Int64("seed", 42, "noise seed")
	flag.Parse()

	if err := run(*dataDir, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(dataDir string, seed int64) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))

	months := make([]time.Time, nMonths)
	for i := range months {
		months[i] = startMonth.AddDate(0, i, 0)
	}
	driver := driverSeries(months, rng)

	csvPath := filepath.Join(dataDir, "nina34.anom.csv")
	if err := writeDriverCSV(csvPath, months, driver); err != nil {
		return err
	}
	log.Printf("wrote %s", csvPath)

	ncPath := filepath.Join(dataDir, "ersstv5.nc")
	if err := writeFieldNetCDF(ncPath, months, driver, rng); err != nil {
		return err
	}
	log.Printf("wrote %s", ncPath)
	return nil
}

// driverSeries builds an ENSO-like index: a broad pulse peaking at peakMonth
// over low-amplitude noise.
func driverSeries(months []time.Time, rng *rand.Rand) []float64 {
	peak := monthsBetween(startMonth, peakMonth)
	out := make([]float64, len(months))
	for i := range months {
		d := float64(i - peak)
		out[i] = 2.5*math.Exp(-d*d/64) + 0.15*rng.NormFloat64()
	}
	return out
}

func writeDriverCSV(path string, months []time.Time, driver []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create driver csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "value"}); err != nil {
		return err
	}
	for i, m := range months {
		rec := []string{m.Format("2006-01-02"), fmt.Sprintf("%.4f", driver[i])}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeFieldNetCDF(path string, months []time.Time, driver []float64, rng *rand.Rand) error {
	lats := coordRange(-20, 20, 4)
	lons := coordRange(-170, -70, 4)

	h := cdf.NewHeader(
		[]string{"time", "lat", "lon"},
		[]int{len(months), len(lats), len(lons)},
	)
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "days since 1800-01-01 00:00:00")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("sst", []string{"time", "lat", "lon"}, []float64{0})
	h.AddAttribute("sst", "units", "degC")
	h.Define()

	times := make([]float64, len(months))
	for i, m := range months {
		times[i] = m.Sub(ncEpoch).Hours() / 24
	}

	sst := make([]float64, len(months)*len(lats)*len(lons))
	for t := range months {
		for i, lat := range lats {
			for j, lon := range lons {
				// Seasonal cycle plus noise everywhere; the climatology
				// subtraction in the loader removes the cycle.
				v := 27 + 2*math.Sin(2*math.Pi*float64(t)/12) + 0.3*rng.NormFloat64()

				// Eastern box follows the driver two months late; western
				// box responds with opposite sign one month early.
				switch {
				case lon > -110 && math.Abs(lat) < 10:
					if t >= 2 {
						v += 0.9 * driver[t-2]
					}
				case lon < -150 && math.Abs(lat) < 10:
					if t+1 < len(driver) {
						v -= 0.7 * driver[t+1]
					}
				}
				sst[(t*len(lats)+i)*len(lons)+j] = v
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create netcdf: %w", err)
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("write netcdf header: %w", err)
	}
	for name, data := range map[string][]float64{
		"time": times, "lat": lats, "lon": lons, "sst": sst,
	} {
		end := nc.Header.Lengths(name)
		start := make([]int, len(end))
		w := nc.Writer(name, start, end)
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return cdf.UpdateNumRecs(f)
}

func coordRange(lo, hi, step float64) []float64 {
	var out []float64
	for v := lo; v <= hi; v += step {
		out = append(out, v)
	}
	return out
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
