// Package adapters provides the data sources waitcast reads historical queue
// wait times from. Every source normalizes its records into a DataFrame whose
// rows carry a "value" column, ordered oldest first.
//
// Available adapters:
//   - CSVAdapter: one column of a local CSV file (default)
//   - PrometheusAdapter: range query against the Prometheus HTTP API
//   - VictoriaMetricsAdapter: same query API served by VictoriaMetrics
//   - HTTPAdapter: any JSON REST API, extracted with gjson paths
//   - RedisAdapter: a Redis list of observations
//   - PostgresAdapter: one column of a PostgreSQL table
//   - SQLiteAdapter: one column of a SQLite table
//   - InfluxAdapter: a Flux query against InfluxDB 2.x
//
// Adapters only pull and shape raw data. Validation of the series, scaling and
// prediction belong to the upper layers.
package adapters

import (
	"context"
	"time"
)

// Row represents a single observation.
// Example: {"ts": "2025-10-25T17:00:00Z", "value": 23.5}
type Row map[string]any

// DataFrame is a lightweight structure for tabular data returned by adapters.
type DataFrame struct {
	Rows []Row
}

// values returns the "value" column. Rows without a float64 value are skipped.
func (df *DataFrame) values() []float64 {
	out := make([]float64, 0, len(df.Rows))
	for _, r := range df.Rows {
		if v, ok := r["value"].(float64); ok {
			out = append(out, v)
		}
	}
	return out
}

// Adapter is the interface that all waitcast sources implement.
//
// Collect is synchronous and must respect context cancellation and deadlines.
// windowSeconds bounds the history for time-indexed sources; sources without a
// time index (CSV, Redis lists) return everything they hold.
type Adapter interface {
	Collect(ctx context.Context, windowSeconds int) (*DataFrame, error)

	// Name returns a short identifier, e.g. "csv" or "prometheus".
	Name() string
}

// alignTimestamp truncates ts to a multiple of stepSec.
func alignTimestamp(ts time.Time, stepSec int) time.Time {
	return ts.Truncate(time.Duration(stepSec) * time.Second)
}

// windowStart returns the beginning of the collection window ending now.
func windowStart(now time.Time, windowSeconds int) time.Time {
	return now.Add(-time.Duration(windowSeconds) * time.Second)
}
