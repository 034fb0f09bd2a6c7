// Package metrics provides Prometheus instrumentation for prediction runs.
//
// The predictor is a batch job, so metrics live on a private registry and are
// pushed to a Pushgateway at the end of a run instead of being scraped.
//
// Metrics:
//   - waitcast_adapter_collect_seconds: Histogram of series collection duration
//   - waitcast_model_predict_seconds: Histogram of model inference duration
//   - waitcast_series_length: Gauge of observations loaded
//   - waitcast_prediction_minutes: Gauge of each estimate, by estimator
//   - waitcast_last_success_timestamp_seconds: Gauge set when a run completes
//   - waitcast_errors_total: Counter of errors by stage
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Job is the Pushgateway job name.
const Job = "waitcast_predictor"

// Metrics holds all Prometheus metrics for one run.
type Metrics struct {
	registry *prometheus.Registry

	AdapterCollectSeconds prometheus.Histogram
	ModelPredictSeconds   prometheus.Histogram
	SeriesLength          prometheus.Gauge
	Prediction            *prometheus.GaugeVec
	LastSuccess           prometheus.Gauge
	ErrorsTotal           *prometheus.CounterVec
}

// New creates all metrics on a fresh registry.
func New(adapter, model string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AdapterCollectSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "waitcast_adapter_collect_seconds",
			Help:        "Time spent collecting the wait-time series",
			ConstLabels: prometheus.Labels{"adapter": adapter},
			Buckets:     prometheus.DefBuckets,
		}),

		ModelPredictSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "waitcast_model_predict_seconds",
			Help:        "Time spent in sequence model inference",
			ConstLabels: prometheus.Labels{"model": model},
			Buckets:     prometheus.DefBuckets,
		}),

		SeriesLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "waitcast_series_length",
			Help: "Number of observations in the loaded series",
		}),

		Prediction: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waitcast_prediction_minutes",
			Help: "Predicted wait time in minutes by estimator",
		}, []string{"estimator"}),

		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "waitcast_last_success_timestamp_seconds",
			Help: "Unix time of the last successful prediction run",
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waitcast_errors_total",
			Help: "Total number of errors by stage",
		}, []string{"stage"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordCollect records the time spent collecting the series.
func (m *Metrics) RecordCollect(seconds float64) {
	m.AdapterCollectSeconds.Observe(seconds)
}

// RecordPredict records the time spent in model inference.
func (m *Metrics) RecordPredict(seconds float64) {
	m.ModelPredictSeconds.Observe(seconds)
}

// SetSeriesLength sets the number of loaded observations.
func (m *Metrics) SetSeriesLength(n int) {
	m.SeriesLength.Set(float64(n))
}

// SetPredictions records the three estimates and marks the run successful.
func (m *Metrics) SetPredictions(movingAverage, model, hybrid float64, at time.Time) {
	m.Prediction.WithLabelValues("moving_average").Set(movingAverage)
	m.Prediction.WithLabelValues("model").Set(model)
	m.Prediction.WithLabelValues("hybrid").Set(hybrid)
	m.LastSuccess.Set(float64(at.Unix()))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(stage string) {
	m.ErrorsTotal.WithLabelValues(stage).Inc()
}

// Push sends every metric to the Pushgateway at url, grouped by run id.
func (m *Metrics) Push(ctx context.Context, url, runID string) error {
	err := push.New(url, Job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
