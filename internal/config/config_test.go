package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())

	start, err := cfg.TimeStartDate()
	require.NoError(t, err)
	end, err := cfg.TimeEndDate()
	require.NoError(t, err)
	peak, err := cfg.PeakDateTime()
	require.NoError(t, err)

	assert.Equal(t, time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2018, time.December, 1, 0, 0, 0, 0, time.UTC), end)
	assert.True(t, peak.After(start) && peak.Before(end))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "fragment size too small",
			mutate:  func(c *Config) { c.FragmentSize = 2 },
			wantErr: "fragment_size",
		},
		{
			name:    "no permutations",
			mutate:  func(c *Config) { c.NPermutations = 0 },
			wantErr: "n_permutations",
		},
		{
			name:    "inverted lag bounds",
			mutate:  func(c *Config) { c.MinLag, c.MaxLag = 3, -3 },
			wantErr: "lag bounds",
		},
		{
			name:    "alpha zero",
			mutate:  func(c *Config) { c.Alpha = 0 },
			wantErr: "alpha",
		},
		{
			name:    "alpha above one",
			mutate:  func(c *Config) { c.Alpha = 1.5 },
			wantErr: "alpha",
		},
		{
			name:    "top fraction zero",
			mutate:  func(c *Config) { c.TopFraction = 0 },
			wantErr: "top_fraction",
		},
		{
			name:    "zero stride",
			mutate:  func(c *Config) { c.LonStride = 0 },
			wantErr: "strides",
		},
		{
			name:    "inverted latitudes",
			mutate:  func(c *Config) { c.LatMin, c.LatMax = 20, -20 },
			wantErr: "latitude window",
		},
		{
			name:    "inverted longitudes",
			mutate:  func(c *Config) { c.LonMin, c.LonMax = -70, -170 },
			wantErr: "longitude window",
		},
		{
			name:    "unparseable start date",
			mutate:  func(c *Config) { c.TimeStart = "January 2014" },
			wantErr: "time_start",
		},
		{
			name:    "inverted time window",
			mutate:  func(c *Config) { c.TimeStart, c.TimeEnd = "2018-12-01", "2014-01-01" },
			wantErr: "time window inverted",
		},
		{
			name:    "peak before window",
			mutate:  func(c *Config) { c.PeakDate = "2010-06-01" },
			wantErr: "peak_date",
		},
		{
			name:    "peak after window",
			mutate:  func(c *Config) { c.PeakDate = "2020-06-01" },
			wantErr: "peak_date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
