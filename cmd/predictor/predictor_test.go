package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HatiCode/waitcast/cmd/predictor/metrics"
	"github.com/HatiCode/waitcast/pkg/adapters"
	"github.com/HatiCode/waitcast/pkg/estimate"
	"github.com/HatiCode/waitcast/pkg/features"
	"github.com/HatiCode/waitcast/pkg/models"
	"github.com/HatiCode/waitcast/pkg/scaling"
)

// stubModel returns a fixed scaled value and remembers its last input.
type stubModel struct {
	out   float64
	err   error
	input models.Tensor
}

func (s *stubModel) Name() string { return "lstm" }

func (s *stubModel) Predict(_ context.Context, in models.Tensor) (float64, error) {
	s.input = in
	return s.out, s.err
}

type failingAdapter struct{}

func (failingAdapter) Name() string { return "failing" }

func (failingAdapter) Collect(context.Context, int) (*adapters.DataFrame, error) {
	return nil, errors.New("connection refused")
}

func writeQueue(t *testing.T, values ...float64) *adapters.CSVAdapter {
	t.Helper()
	var b strings.Builder
	b.WriteString("patient_id,waiting_time\n")
	for i, v := range values {
		fmt.Fprintf(&b, "%d,%v\n", i+1, v)
	}
	path := filepath.Join(t.TempDir(), "hospital_queue.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return &adapters.CSVAdapter{Path: path, Column: "waiting_time"}
}

func defaultOptions() Options {
	return Options{
		Window:    time.Hour,
		MAWindow:  5,
		TimeSteps: 5,
		Weights:   estimate.DefaultWeights,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPredictor_Run(t *testing.T) {
	model := &stubModel{out: 1.0}
	m := metrics.New("csv", "lstm")
	p := New(writeQueue(t, 10, 20, 30, 40, 50), model, nil, defaultOptions(), testLogger(), m)

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := fmt.Sprintf("%.2f/%.2f/%.2f", r.MovingAverage, r.Model, r.Hybrid); got != "30.00/50.00/42.00" {
		t.Errorf("report = %s, want 30.00/50.00/42.00", got)
	}
	if r.ModelLabel != "lstm" {
		t.Errorf("ModelLabel = %q", r.ModelLabel)
	}

	if model.input.Shape != [3]int{1, 5, 1} {
		t.Errorf("input shape = %v, want (1, 5, 1)", model.input.Shape)
	}
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i, v := range want {
		if math.Abs(model.input.Data[i]-v) > 1e-12 {
			t.Errorf("input[%d] = %v, want %v", i, model.input.Data[i], v)
		}
	}

	if got := testutil.ToFloat64(m.Prediction.WithLabelValues("hybrid")); math.Abs(got-42) > 1e-9 {
		t.Errorf("hybrid gauge = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.SeriesLength); got != 5 {
		t.Errorf("series length gauge = %v, want 5", got)
	}
}

func TestPredictor_Run_ScalerFitsFullSeries(t *testing.T) {
	// The peak of 110 lies outside the model window but still sets the range.
	model := &stubModel{out: 0.5}
	p := New(writeQueue(t, 110, 10, 20, 30, 40, 50), model, nil, defaultOptions(), testLogger(), nil)

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if math.Abs(model.input.Data[4]-0.4) > 1e-12 {
		t.Errorf("last scaled value = %v, want 0.4", model.input.Data[4])
	}
	if math.Abs(r.Model-60) > 1e-9 {
		t.Errorf("Model = %v, want 60", r.Model)
	}
	if math.Abs(r.MovingAverage-30) > 1e-9 {
		t.Errorf("MovingAverage = %v, want 30", r.MovingAverage)
	}
}

func TestPredictor_Run_ConstantTail(t *testing.T) {
	model := &stubModel{out: 0}
	p := New(writeQueue(t, 3, 8, 12.5, 12.5, 12.5, 12.5, 12.5), model, nil, defaultOptions(), testLogger(), nil)

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fmt.Sprintf("%.2f", r.MovingAverage) != "12.50" {
		t.Errorf("MovingAverage = %.2f, want 12.50", r.MovingAverage)
	}
}

func TestPredictor_Run_IndependentWindows(t *testing.T) {
	model := &stubModel{out: 1}
	opts := defaultOptions()
	opts.MAWindow = 2
	opts.TimeSteps = 4

	p := New(writeQueue(t, 10, 20, 30, 40, 50), model, nil, opts, testLogger(), nil)
	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.MovingAverage != 45 {
		t.Errorf("MovingAverage = %v, want 45", r.MovingAverage)
	}
	if model.input.Shape != [3]int{1, 4, 1} {
		t.Errorf("input shape = %v", model.input.Shape)
	}
}

func TestPredictor_Run_Errors(t *testing.T) {
	tests := []struct {
		name    string
		adapter adapters.Adapter
		model   *stubModel
		opts    func(*Options)
		stage   string
		target  error
	}{
		{
			name:    "collect failure",
			adapter: failingAdapter{},
			model:   &stubModel{},
			stage:   "collect",
		},
		{
			name:    "series shorter than time steps",
			adapter: writeQueue(t, 10, 20, 30),
			model:   &stubModel{},
			stage:   "features",
			target:  features.ErrSeriesTooShort,
		},
		{
			name:    "series shorter than moving-average window",
			adapter: writeQueue(t, 10, 20, 30, 40, 50),
			model:   &stubModel{},
			opts:    func(o *Options) { o.MAWindow = 6 },
			stage:   "features",
			target:  features.ErrSeriesTooShort,
		},
		{
			name:    "degenerate range",
			adapter: writeQueue(t, 7, 7, 7, 7, 7),
			model:   &stubModel{},
			stage:   "scale",
			target:  scaling.ErrDegenerateRange,
		},
		{
			name:    "model failure",
			adapter: writeQueue(t, 10, 20, 30, 40, 50),
			model:   &stubModel{err: models.ErrIncompatibleShape},
			stage:   "predict",
			target:  models.ErrIncompatibleShape,
		},
		{
			name:    "invalid weights",
			adapter: writeQueue(t, 10, 20, 30, 40, 50),
			model:   &stubModel{},
			opts:    func(o *Options) { o.Weights = estimate.Weights{Model: 0.9, MovingAverage: 0.9} },
			stage:   "blend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			m := metrics.New("csv", "lstm")
			p := New(tt.adapter, tt.model, nil, opts, testLogger(), m)

			_, err := p.Run(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
			if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(tt.stage)); got != 1 {
				t.Errorf("errors{stage=%q} = %v, want 1", tt.stage, got)
			}
		})
	}
}
