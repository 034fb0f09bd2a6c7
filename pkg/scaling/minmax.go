// Package scaling provides the min-max transform used to feed wait-time
// observations to sequence models trained on the [0, 1] range.
//
// The scaler is fit once per run over the full historical series, not just the
// prediction window, so the model sees values in the same range it was trained
// on. The inverse transform maps a scaled model output back to raw units.
package scaling

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmptySeries is returned when fitting on no observations.
	ErrEmptySeries = errors.New("scaling: series is empty")

	// ErrDegenerateRange is returned when every observation has the same value,
	// which leaves max - min at zero.
	ErrDegenerateRange = errors.New("scaling: degenerate range (min == max)")
)

// MinMaxScaler maps values from [Min, Max] to [0, 1] and back.
type MinMaxScaler struct {
	Min float64
	Max float64
}

// Fit computes the scaler state from the full series.
func Fit(values []float64) (*MinMaxScaler, error) {
	if len(values) == 0 {
		return nil, ErrEmptySeries
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("scaling: value[%d] is not finite: %v", i, v)
		}
	}

	s := &MinMaxScaler{
		Min: floats.Min(values),
		Max: floats.Max(values),
	}
	if s.Max == s.Min {
		return nil, fmt.Errorf("%w: all %d values equal %v", ErrDegenerateRange, len(values), s.Min)
	}
	return s, nil
}

// Range returns max - min.
func (s *MinMaxScaler) Range() float64 {
	return s.Max - s.Min
}

// Transform scales a single raw value.
func (s *MinMaxScaler) Transform(x float64) float64 {
	return (x - s.Min) / s.Range()
}

// TransformAll scales a slice into a newly allocated slice.
func (s *MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

// Inverse maps a scaled value back to raw units. Values outside [0, 1]
// are extrapolated linearly.
func (s *MinMaxScaler) Inverse(scaled float64) float64 {
	return scaled*s.Range() + s.Min
}
