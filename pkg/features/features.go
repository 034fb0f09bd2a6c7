// Package features turns adapter output into the wait-time series consumed by
// the estimators.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/HatiCode/waitcast/pkg/adapters"
)

// ErrSeriesTooShort is returned when a series holds fewer observations than a
// window requires.
var ErrSeriesTooShort = errors.New("series too short")

// Series is an ordered list of observed wait times, oldest first.
type Series []float64

// Require returns ErrSeriesTooShort unless the series has at least n values.
func (s Series) Require(n int) error {
	if len(s) < n {
		return fmt.Errorf("%w: have %d observations, need %d", ErrSeriesTooShort, len(s), n)
	}
	return nil
}

// Tail returns a copy of the last n values. Callers check Require first.
func (s Series) Tail(n int) []float64 {
	if n > len(s) {
		n = len(s)
	}
	out := make([]float64, n)
	copy(out, s[len(s)-n:])
	return out
}

// Builder extracts the value column from a DataFrame.
type Builder struct {
	// Column is the row key holding the wait time.
	Column string
}

// NewBuilder returns a builder reading the "value" column.
func NewBuilder() *Builder {
	return &Builder{Column: "value"}
}

// BuildSeries validates every row and returns the series in row order.
// Missing, non-numeric, non-finite and negative values are rejected.
func (b *Builder) BuildSeries(df *adapters.DataFrame) (Series, error) {
	if df == nil || len(df.Rows) == 0 {
		return nil, errors.New("no data rows")
	}

	out := make(Series, 0, len(df.Rows))
	for i, row := range df.Rows {
		raw, ok := row[b.Column]
		if !ok {
			return nil, fmt.Errorf("row %d: missing %q", i, b.Column)
		}
		v, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("row %d: %q is not numeric (%T)", i, b.Column, raw)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("row %d: %q is not finite", i, b.Column)
		}
		if v < 0 {
			return nil, fmt.Errorf("row %d: negative wait time %g", i, v)
		}
		out = append(out, v)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
