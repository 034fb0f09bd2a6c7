// Package models holds the sequence models that forecast the next wait time
// from a window of min-max scaled observations.
//
// Every model consumes a Tensor of shape (batch, timeSteps, features) and
// returns one scaled value; inverse scaling is the caller's job.
package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrIncompatibleShape is returned when an input tensor does not match what
// a model was built for.
var ErrIncompatibleShape = errors.New("incompatible input shape")

// Model predicts the next scaled observation of a window.
type Model interface {
	// Name returns a short identifier such as "lstm" or "byom".
	Name() string
	// Predict returns the scaled forecast for the first batch entry.
	Predict(ctx context.Context, input Tensor) (float64, error)
}

// Tensor is a dense row-major 3-D array.
type Tensor struct {
	Shape [3]int
	Data  []float64
}

// Reshape lays window out as a (1, steps, features) tensor. len(window) must
// equal steps*features.
func Reshape(window []float64, steps, features int) (Tensor, error) {
	if steps <= 0 || features <= 0 {
		return Tensor{}, fmt.Errorf("%w: steps=%d features=%d", ErrIncompatibleShape, steps, features)
	}
	if len(window) != steps*features {
		return Tensor{}, fmt.Errorf("%w: %d values cannot fill (1, %d, %d)", ErrIncompatibleShape, len(window), steps, features)
	}
	data := make([]float64, len(window))
	copy(data, window)
	return Tensor{Shape: [3]int{1, steps, features}, Data: data}, nil
}

// At returns element [b][t][f].
func (t Tensor) At(b, step, f int) float64 {
	return t.Data[(b*t.Shape[1]+step)*t.Shape[2]+f]
}

// Nested returns the tensor as [][][]float64, the layout model servers expect
// in JSON payloads.
func (t Tensor) Nested() [][][]float64 {
	out := make([][][]float64, t.Shape[0])
	for b := range out {
		out[b] = make([][]float64, t.Shape[1])
		for s := range out[b] {
			row := make([]float64, t.Shape[2])
			for f := range row {
				row[f] = t.At(b, s, f)
			}
			out[b][s] = row
		}
	}
	return out
}
