package estimate

import (
	"fmt"
	"math"
)

// weightTolerance absorbs float rounding in configured weights such as 0.6 + 0.4.
const weightTolerance = 1e-9

// Weights are the blend coefficients of the hybrid estimate.
type Weights struct {
	Model         float64
	MovingAverage float64
}

// DefaultWeights favours the sequence model over the moving average.
var DefaultWeights = Weights{Model: 0.6, MovingAverage: 0.4}

// Validate requires both weights in [0, 1] and summing to 1.
func (w Weights) Validate() error {
	if w.Model < 0 || w.Model > 1 {
		return fmt.Errorf("model weight %v out of range [0, 1]", w.Model)
	}
	if w.MovingAverage < 0 || w.MovingAverage > 1 {
		return fmt.Errorf("moving-average weight %v out of range [0, 1]", w.MovingAverage)
	}
	if sum := w.Model + w.MovingAverage; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	return nil
}

// Blend combines a model prediction and a moving-average prediction.
//
//	hybrid = w.Model*model + w.MovingAverage*movingAverage
func (w Weights) Blend(model, movingAverage float64) float64 {
	return w.Model*model + w.MovingAverage*movingAverage
}
