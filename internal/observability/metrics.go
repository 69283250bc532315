package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a layer
// computation run.
type Metrics struct {
	CellsComputed  prometheus.Counter
	CellsValid     prometheus.Counter
	CellsSkipped   *prometheus.CounterVec // label: reason={short_series,flat_series,missing_data,no_selection}
	CellDuration   prometheus.Histogram
	PairsEvaluated prometheus.Counter
	ComputeRunning prometheus.Gauge

	// Dataset fetch metrics.
	Downloads        *prometheus.CounterVec // labels: source, outcome={fetched,cached,error}
	DownloadDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CellsComputed,
		m.CellsValid,
		m.CellsSkipped,
		m.CellDuration,
		m.PairsEvaluated,
		m.ComputeRunning,
		m.Downloads,
		m.DownloadDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CellsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdcmap",
			Name:      "cells_computed_total",
			Help:      "Total gridpoints processed, whether or not a summary was produced.",
		}),
		CellsValid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdcmap",
			Name:      "cells_valid_total",
			Help:      "Total gridpoints that produced a populated summary.",
		}),
		CellsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdcmap",
			Name:      "cells_skipped_total",
			Help:      "Gridpoints left NaN, by reason.",
		}, []string{"reason"}),
		CellDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sdcmap",
			Name:      "cell_duration_seconds",
			Help:      "Duration of one gridpoint's SDC computation and reduction.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		PairsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdcmap",
			Name:      "pairs_evaluated_total",
			Help:      "Total SDC fragment pairs fed to the reducer.",
		}),
		ComputeRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdcmap",
			Name:      "compute_running",
			Help:      "1 while the grid computation is active, 0 otherwise.",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdcmap",
			Name:      "downloads_total",
			Help:      "Dataset download attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		DownloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdcmap",
			Name:      "download_duration_seconds",
			Help:      "Dataset download duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
	}
}
