// Package main implements the one-shot wait-time prediction pipeline.
//
// This file contains the Predictor type which runs the pipeline once:
//
//	collect → buildSeries → fitScaler → movingAverage → predict → blend
//
// Each stage is logged and, when metrics are configured, timed and counted so
// that a batch run can push its results to a Pushgateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/waitcast/cmd/predictor/metrics"
	"github.com/HatiCode/waitcast/pkg/adapters"
	"github.com/HatiCode/waitcast/pkg/estimate"
	"github.com/HatiCode/waitcast/pkg/features"
	"github.com/HatiCode/waitcast/pkg/models"
	"github.com/HatiCode/waitcast/pkg/report"
	"github.com/HatiCode/waitcast/pkg/scaling"
)

// Predictor runs one hybrid prediction: adapter → series → scaler → model + moving average → blend.
type Predictor struct {
	adapter   adapters.Adapter
	model     models.Model
	builder   *features.Builder
	window    time.Duration
	maWindow  int
	timeSteps int
	weights   estimate.Weights
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Options holds the pipeline settings.
type Options struct {
	Window    time.Duration
	MAWindow  int
	TimeSteps int
	Weights   estimate.Weights
}

// New creates a new Predictor. metrics may be nil.
func New(
	adapter adapters.Adapter,
	model models.Model,
	builder *features.Builder,
	opts Options,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	if builder == nil {
		builder = features.NewBuilder()
	}

	return &Predictor{
		adapter:   adapter,
		model:     model,
		builder:   builder,
		window:    opts.Window,
		maWindow:  opts.MAWindow,
		timeSteps: opts.TimeSteps,
		weights:   opts.Weights,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes the pipeline once and returns the three estimates.
func (p *Predictor) Run(ctx context.Context) (report.Report, error) {
	start := time.Now()

	if err := p.weights.Validate(); err != nil {
		p.recordError("blend")
		return report.Report{}, fmt.Errorf("blend: %w", err)
	}

	df, err := p.collect(ctx)
	if err != nil {
		p.recordError("collect")
		return report.Report{}, fmt.Errorf("collect: %w", err)
	}

	series, err := p.buildSeries(df)
	if err != nil {
		p.recordError("features")
		return report.Report{}, fmt.Errorf("build series: %w", err)
	}

	scaler, err := scaling.Fit(series)
	if err != nil {
		p.recordError("scale")
		return report.Report{}, fmt.Errorf("scale: %w", err)
	}
	p.logger.Debug("fitted scaler", "min", scaler.Min, "max", scaler.Max)

	ma, err := estimate.MovingAverage(series, p.maWindow)
	if err != nil {
		p.recordError("moving_average")
		return report.Report{}, fmt.Errorf("moving average: %w", err)
	}

	modelPred, predictDuration, err := p.predict(ctx, series, scaler)
	if err != nil {
		p.recordError("predict")
		return report.Report{}, fmt.Errorf("predict: %w", err)
	}

	hybrid := p.weights.Blend(modelPred, ma)

	if p.metrics != nil {
		p.metrics.SetPredictions(ma, modelPred, hybrid, time.Now())
	}

	p.logger.Info("prediction complete",
		"model", p.model.Name(),
		"observations", len(series),
		"moving_average", ma,
		"model_prediction", modelPred,
		"hybrid", hybrid,
		"predict_ms", predictDuration.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)

	return report.Report{
		MovingAverage: ma,
		Model:         modelPred,
		Hybrid:        hybrid,
		ModelLabel:    p.model.Name(),
	}, nil
}

// collect retrieves the raw series from the adapter.
func (p *Predictor) collect(ctx context.Context) (*adapters.DataFrame, error) {
	start := time.Now()

	df, err := p.adapter.Collect(ctx, int(p.window.Seconds()))
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordCollect(duration.Seconds())
	}

	p.logger.Info("collected series",
		"adapter", p.adapter.Name(),
		"rows", len(df.Rows),
		"window_seconds", int(p.window.Seconds()),
		"duration_ms", duration.Milliseconds(),
	)
	return df, nil
}

// buildSeries validates the rows and checks the series covers both windows.
func (p *Predictor) buildSeries(df *adapters.DataFrame) (features.Series, error) {
	series, err := p.builder.BuildSeries(df)
	if err != nil {
		return nil, err
	}
	if err := series.Require(max(p.maWindow, p.timeSteps)); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.SetSeriesLength(len(series))
	}
	p.logger.Debug("built series", "observations", len(series))
	return series, nil
}

// predict scales the last timeSteps values, runs the model and maps its
// output back to minutes.
func (p *Predictor) predict(ctx context.Context, series features.Series, scaler *scaling.MinMaxScaler) (float64, time.Duration, error) {
	window := scaler.TransformAll(series.Tail(p.timeSteps))

	input, err := models.Reshape(window, p.timeSteps, 1)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	scaled, err := p.model.Predict(ctx, input)
	if err != nil {
		return 0, 0, err
	}
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordPredict(duration.Seconds())
	}

	pred := scaler.Inverse(scaled)
	p.logger.Debug("model prediction",
		"model", p.model.Name(),
		"scaled", scaled,
		"minutes", pred,
		"duration_ms", duration.Milliseconds(),
	)
	return pred, duration, nil
}

func (p *Predictor) recordError(stage string) {
	if p.metrics != nil {
		p.metrics.RecordError(stage)
	}
}
