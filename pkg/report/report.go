// Package report renders the outcome of a prediction run.
package report

import (
	"fmt"
	"io"
	"strings"
)

// Report holds the three estimates of one run, in minutes.
type Report struct {
	MovingAverage float64
	Model         float64
	Hybrid        float64
	// ModelLabel names the sequence model, e.g. "lstm".
	ModelLabel string
}

// Write prints r in the fixed text layout, two decimals per number.
func Write(w io.Writer, r Report) error {
	label := strings.ToUpper(r.ModelLabel)
	if label == "" {
		label = "MODEL"
	}
	_, err := fmt.Fprintf(w,
		"\n===== WAIT TIME PREDICTION =====\n"+
			"Moving Average Prediction: %.2f minutes\n"+
			"%s Prediction: %.2f minutes\n"+
			"Hybrid Prediction: %.2f minutes\n"+
			"================================\n",
		r.MovingAverage, label, r.Model, r.Hybrid)
	return err
}
