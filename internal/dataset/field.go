package dataset

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/cdf"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// FieldOptions selects the variable and spatial/temporal window to load from
// a gridded NetCDF file.
type FieldOptions struct {
	Variable string

	TimeStart time.Time
	TimeEnd   time.Time

	LatMin, LatMax float64
	LonMin, LonMax float64

	// Strides subsample the grid; 1 keeps every gridpoint.
	LatStride int
	LonStride int

	// Anomalies subtracts the per-calendar-month mean over the loaded window.
	Anomalies bool
}

// LoadField reads a (time, lat, lon) variable from a classic-format NetCDF
// file, subsets it to the configured window, normalizes longitudes to
// [-180, 180), and optionally converts values to monthly anomalies.
func LoadField(path string, opts FieldOptions) (domain.Field, error) {
	if opts.LatStride < 1 || opts.LonStride < 1 {
		return domain.Field{}, fmt.Errorf("strides must be positive, got lat=%d lon=%d", opts.LatStride, opts.LonStride)
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Field{}, fmt.Errorf("open netcdf: %w", err)
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return domain.Field{}, fmt.Errorf("parse netcdf: %w", err)
	}

	dims := nc.Header.Dimensions(opts.Variable)
	if len(dims) != 3 {
		return domain.Field{}, fmt.Errorf("variable %q has dimensions %v, want (time, lat, lon)", opts.Variable, dims)
	}

	times, err := readTimes(nc, dims[0])
	if err != nil {
		return domain.Field{}, err
	}
	lats, err := readFloats(nc, dims[1])
	if err != nil {
		return domain.Field{}, err
	}
	lons, err := readFloats(nc, dims[2])
	if err != nil {
		return domain.Field{}, err
	}
	values, err := readFloats(nc, opts.Variable)
	if err != nil {
		return domain.Field{}, err
	}
	if len(values) != len(times)*len(lats)*len(lons) {
		return domain.Field{}, fmt.Errorf("variable %q has %d values for %dx%dx%d grid",
			opts.Variable, len(values), len(times), len(lats), len(lons))
	}

	timeIdx := selectTimes(times, opts.TimeStart, opts.TimeEnd)
	if len(timeIdx) == 0 {
		return domain.Field{}, fmt.Errorf("no field timestamps within %s..%s",
			opts.TimeStart.Format("2006-01-02"), opts.TimeEnd.Format("2006-01-02"))
	}
	latIdx := selectCoords(lats, opts.LatMin, opts.LatMax, opts.LatStride, false)
	lonIdx := selectCoords(normalizeLons(lons), opts.LonMin, opts.LonMax, opts.LonStride, true)
	if len(latIdx) == 0 || len(lonIdx) == 0 {
		return domain.Field{}, fmt.Errorf("empty spatial window lat[%v,%v] lon[%v,%v]",
			opts.LatMin, opts.LatMax, opts.LonMin, opts.LonMax)
	}

	normLons := normalizeLons(lons)
	out := domain.Field{
		Times:  make([]time.Time, len(timeIdx)),
		Lats:   make([]float64, len(latIdx)),
		Lons:   make([]float64, len(lonIdx)),
		Values: make([]float64, len(timeIdx)*len(latIdx)*len(lonIdx)),
	}
	for a, t := range timeIdx {
		out.Times[a] = times[t]
	}
	for b, i := range latIdx {
		out.Lats[b] = lats[i]
	}
	for c, j := range lonIdx {
		out.Lons[c] = normLons[j]
	}

	for a, t := range timeIdx {
		for b, i := range latIdx {
			for c, j := range lonIdx {
				src := (t*len(lats)+i)*len(lons) + j
				out.Values[(a*len(latIdx)+b)*len(lonIdx)+c] = values[src]
			}
		}
	}

	if opts.Anomalies {
		subtractMonthlyClimatology(&out)
	}
	return out, nil
}

// readFloats reads a whole variable as float64, applying the conventional
// missing_value/_FillValue and scale_factor/add_offset attributes.
func readFloats(nc *cdf.File, name string) ([]float64, error) {
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read variable %q: %w", name, err)
	}

	var out []float64
	switch v := buf.(type) {
	case []float64:
		out = v
	case []float32:
		out = make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
	case []int32:
		out = make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
	case []int16:
		out = make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
	default:
		return nil, fmt.Errorf("variable %q has unsupported type %T", name, buf)
	}

	missing, hasMissing := attrFloat(nc, name, "missing_value")
	if !hasMissing {
		missing, hasMissing = attrFloat(nc, name, "_FillValue")
	}
	scale, hasScale := attrFloat(nc, name, "scale_factor")
	offset, hasOffset := attrFloat(nc, name, "add_offset")

	for i, x := range out {
		if hasMissing && x == missing {
			out[i] = math.NaN()
			continue
		}
		if hasScale {
			x *= scale
		}
		if hasOffset {
			x += offset
		}
		out[i] = x
	}
	return out, nil
}

// readTimes reads the time coordinate and decodes its CF units attribute
// ("days since ...", "hours since ...", "months since ...").
func readTimes(nc *cdf.File, name string) ([]time.Time, error) {
	raw, err := readFloats(nc, name)
	if err != nil {
		return nil, err
	}

	units, ok := nc.Header.GetAttribute(name, "units").(string)
	if !ok {
		return nil, fmt.Errorf("time variable %q has no units attribute", name)
	}
	unit, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, len(raw))
	for i, v := range raw {
		switch unit {
		case "days":
			out[i] = epoch.Add(time.Duration(v * 24 * float64(time.Hour)))
		case "hours":
			out[i] = epoch.Add(time.Duration(v * float64(time.Hour)))
		case "months":
			out[i] = epoch.AddDate(0, int(v), 0)
		}
	}
	return out, nil
}

func parseTimeUnits(units string) (unit string, epoch time.Time, err error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return "", time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}
	unit = strings.ToLower(strings.TrimSpace(parts[0]))
	switch unit {
	case "days", "hours", "months":
	default:
		return "", time.Time{}, fmt.Errorf("unsupported time unit %q", unit)
	}

	// Epochs come in forms like "1800-1-1", "1800-01-01 00:00:0.0".
	date := strings.Fields(parts[1])[0]
	fields := strings.Split(date, "-")
	if len(fields) != 3 {
		return "", time.Time{}, fmt.Errorf("unsupported epoch %q", parts[1])
	}
	var y, m, d int
	if _, err := fmt.Sscanf(date, "%d-%d-%d", &y, &m, &d); err != nil {
		return "", time.Time{}, fmt.Errorf("parse epoch %q: %w", parts[1], err)
	}
	return unit, time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}

func selectTimes(times []time.Time, start, end time.Time) []int {
	var idx []int
	for i, t := range times {
		if t.Before(start) || t.After(end) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// selectCoords returns source indexes of coordinates within [lo, hi], strided.
// With sortAsc the surviving indexes are ordered by ascending coordinate value
// rather than file order, which puts normalized longitudes west to east.
func selectCoords(coords []float64, lo, hi float64, stride int, sortAsc bool) []int {
	var idx []int
	for i, c := range coords {
		if c < lo || c > hi {
			continue
		}
		idx = append(idx, i)
	}
	if sortAsc {
		sort.Slice(idx, func(a, b int) bool { return coords[idx[a]] < coords[idx[b]] })
	}
	var out []int
	for k := 0; k < len(idx); k += stride {
		out = append(out, idx[k])
	}
	return out
}

func normalizeLons(lons []float64) []float64 {
	out := make([]float64, len(lons))
	for i, l := range lons {
		out[i] = math.Mod(l+180, 360) - 180
	}
	return out
}

// subtractMonthlyClimatology converts the field to anomalies against the
// per-calendar-month mean of the loaded window, gridpoint by gridpoint.
func subtractMonthlyClimatology(f *domain.Field) {
	nlat, nlon := len(f.Lats), len(f.Lons)
	for i := 0; i < nlat; i++ {
		for j := 0; j < nlon; j++ {
			var sums, counts [13]float64
			for t, ts := range f.Times {
				v := f.Values[(t*nlat+i)*nlon+j]
				if math.IsNaN(v) {
					continue
				}
				m := int(ts.Month())
				sums[m] += v
				counts[m]++
			}
			for t, ts := range f.Times {
				k := (t*nlat+i)*nlon + j
				m := int(ts.Month())
				if counts[m] == 0 {
					f.Values[k] = math.NaN()
					continue
				}
				f.Values[k] -= sums[m] / counts[m]
			}
		}
	}
}

func attrFloat(nc *cdf.File, varName, attr string) (float64, bool) {
	v := nc.Header.GetAttribute(varName, attr)
	if v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	}
	return 0, false
}
