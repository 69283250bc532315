// Package domain models scale-dependent correlation (SDC) map data.
//
// # Method
//
// SDC compares fixed-length fragments of two time series at varying offsets.
// For a driver series (a climate index such as Nino3.4) and one gridpoint of a
// mapped field (such as monthly SST anomalies), every fragment pair within the
// configured lag bounds yields a correlation coefficient and a permutation
// p-value. The lag of a pair is defined as the driver fragment start minus the
// local fragment start, so positive lags mean the driver fragment sits later
// in the record than the local one.
//
// # Data Sources
//
// The reference inputs are public monthly datasets:
//
//	Nino3.4 anomalies: https://psl.noaa.gov/data/correlation/nina34.anom.csv
//	  One row per month. Values at or below -9990 are the NOAA missing-data
//	  sentinel and are dropped during loading.
//	ERSSTv5 SST subset: NetCDF with sst(time, lat, lon) plus coordinate
//	  variables. Longitudes may arrive in [0, 360) and are normalized to
//	  [-180, 180). Anomalies are taken against the per-calendar-month mean
//	  over the loaded window.
//
// # Layers
//
// Reducing a gridpoint's pair results produces a CellSummary: the mean
// correlation, lag, and driver-relative timing of the selected extreme set,
// the polarity of that set, and supplementary timing and extent descriptors.
// A gridpoint with no selectable extreme set carries NaN in every field;
// partial validity never occurs. Cell summaries for the whole domain are
// assembled into a LayerGrid, one flat row-major plane per layer.
package domain
