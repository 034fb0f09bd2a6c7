// Package estimate holds the two pure estimators of the wait-time pipeline:
// the trailing moving average and the hybrid blend of a model prediction with
// that average.
package estimate

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// MovingAverage returns the arithmetic mean of the last window raw observations.
func MovingAverage(values []float64, window int) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("moving average: window must be > 0, got %d", window)
	}
	if len(values) < window {
		return 0, fmt.Errorf("moving average: need %d observations, have %d", window, len(values))
	}

	return stat.Mean(values[len(values)-window:], nil), nil
}
