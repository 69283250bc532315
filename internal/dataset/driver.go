package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AlFontal/sdcmap/internal/domain"
)

// missingSentinel marks unreported values in NOAA PSL index files.
const missingSentinel = -9990

// LoadDriverCSV loads a monthly driver index from a two-column CSV
// (date, value), drops missing-sentinel rows, sorts by time, and keeps rows
// within [start, end] inclusive. A header row is detected and skipped.
func LoadDriverCSV(path string, start, end time.Time) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, fmt.Errorf("open driver csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return domain.Series{}, fmt.Errorf("read driver csv: %w", err)
	}

	type row struct {
		t time.Time
		v float64
	}
	var rows []row
	for i, rec := range records {
		if len(rec) < 2 {
			return domain.Series{}, fmt.Errorf("row %d: expected 2 columns, got %d", i+1, len(rec))
		}
		t, err := parseDate(rec[0])
		if err != nil {
			if i == 0 {
				continue // header
			}
			return domain.Series{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return domain.Series{}, fmt.Errorf("row %d: parse value %q: %w", i+1, rec[1], err)
		}
		if v <= missingSentinel {
			continue
		}
		rows = append(rows, row{t, v})
	}

	sort.Slice(rows, func(a, b int) bool { return rows[a].t.Before(rows[b].t) })

	var s domain.Series
	for _, rw := range rows {
		if rw.t.Before(start) || rw.t.After(end) {
			continue
		}
		s.Times = append(s.Times, rw.t)
		s.Values = append(s.Values, rw.v)
	}
	if s.Len() == 0 {
		return domain.Series{}, fmt.Errorf("no driver samples within %s..%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return s, nil
}

var dateLayouts = []string{"2006-01-02", "2006-01", "2006/01/02", "01/02/2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
