// Package config defines run configuration and its loading rules.
package config

import (
	"fmt"
	"time"
)

// Config holds every tunable of a layer computation run.
type Config struct {
	// SDC computation parameters.
	FragmentSize  int   `koanf:"fragment_size"`
	NPermutations int   `koanf:"n_permutations"`
	TwoTailed     bool  `koanf:"two_tailed"`
	MinLag        int   `koanf:"min_lag"`
	MaxLag        int   `koanf:"max_lag"`
	Seed          int64 `koanf:"seed"`

	// Reduction parameters.
	Alpha       float64 `koanf:"alpha"`
	TopFraction float64 `koanf:"top_fraction"`
	PeakDate    string  `koanf:"peak_date"`

	// Temporal and spatial window.
	TimeStart string  `koanf:"time_start"`
	TimeEnd   string  `koanf:"time_end"`
	LatMin    float64 `koanf:"lat_min"`
	LatMax    float64 `koanf:"lat_max"`
	LonMin    float64 `koanf:"lon_min"`
	LonMax    float64 `koanf:"lon_max"`
	LatStride int     `koanf:"lat_stride"`
	LonStride int     `koanf:"lon_stride"`

	// Execution.
	Workers int `koanf:"workers"`

	// Dataset handling.
	DataDir      string        `koanf:"data_dir"`
	OutDir       string        `koanf:"out_dir"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
	RefreshAfter time.Duration `koanf:"refresh_after"`

	// Observability.
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`
	MetricsAddr string `koanf:"metrics_addr"` // empty disables the HTTP endpoint
	CatalogPath string `koanf:"catalog_path"`
}

// New returns the default configuration: the public Nino3.4 vs tropical
// Pacific SST demo around the 2015/16 El Nino peak.
func New() *Config {
	return &Config{
		FragmentSize:  12,
		NPermutations: 49,
		TwoTailed:     false,
		MinLag:        -6,
		MaxLag:        6,
		Seed:          1,

		Alpha:       0.05,
		TopFraction: 0.25,
		PeakDate:    "2015-11-01",

		TimeStart: "2014-01-01",
		TimeEnd:   "2018-12-01",
		LatMin:    -20,
		LatMax:    20,
		LonMin:    -170,
		LonMax:    -70,
		LatStride: 1,
		LonStride: 1,

		Workers: 0, // GOMAXPROCS

		DataDir:      ".data",
		OutDir:       ".output",
		FetchTimeout: 2 * time.Minute,
		RefreshAfter: 0, // cached files never expire

		LogLevel:    "info",
		LogFormat:   "text",
		MetricsAddr: "",
		CatalogPath: "",
	}
}

// Validate checks every constraint that must hold before any cell is
// processed: invalid configuration is rejected here, never mid-run.
func (c *Config) Validate() error {
	if c.FragmentSize < 3 {
		return fmt.Errorf("fragment_size must be at least 3, got %d", c.FragmentSize)
	}
	if c.NPermutations < 1 {
		return fmt.Errorf("n_permutations must be positive, got %d", c.NPermutations)
	}
	if c.MinLag > c.MaxLag {
		return fmt.Errorf("lag bounds inverted: min_lag %d > max_lag %d", c.MinLag, c.MaxLag)
	}
	if !(c.Alpha > 0 && c.Alpha <= 1) {
		return fmt.Errorf("alpha must be in (0,1], got %v", c.Alpha)
	}
	if !(c.TopFraction > 0 && c.TopFraction <= 1) {
		return fmt.Errorf("top_fraction must be in (0,1], got %v", c.TopFraction)
	}
	if c.LatStride < 1 || c.LonStride < 1 {
		return fmt.Errorf("strides must be positive, got lat=%d lon=%d", c.LatStride, c.LonStride)
	}
	if c.LatMin > c.LatMax {
		return fmt.Errorf("latitude window inverted: %v > %v", c.LatMin, c.LatMax)
	}
	if c.LonMin > c.LonMax {
		return fmt.Errorf("longitude window inverted: %v > %v", c.LonMin, c.LonMax)
	}

	start, err := c.TimeStartDate()
	if err != nil {
		return err
	}
	end, err := c.TimeEndDate()
	if err != nil {
		return err
	}
	if start.After(end) {
		return fmt.Errorf("time window inverted: %s after %s", c.TimeStart, c.TimeEnd)
	}
	peak, err := c.PeakDateTime()
	if err != nil {
		return err
	}
	if peak.Before(start) || peak.After(end) {
		return fmt.Errorf("peak_date %s outside time window %s..%s", c.PeakDate, c.TimeStart, c.TimeEnd)
	}
	return nil
}

// TimeStartDate parses the configured window start.
func (c *Config) TimeStartDate() (time.Time, error) { return parseDay("time_start", c.TimeStart) }

// TimeEndDate parses the configured window end.
func (c *Config) TimeEndDate() (time.Time, error) { return parseDay("time_end", c.TimeEnd) }

// PeakDateTime parses the reference event date.
func (c *Config) PeakDateTime() (time.Time, error) { return parseDay("peak_date", c.PeakDate) }

func parseDay(field, v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: parse %q: %w", field, v, err)
	}
	return t.UTC(), nil
}
