// Command predictor estimates the next patient wait time in a queue.
//
// One run:
//  1. Loads the historical wait-time series through an adapter (CSV by default)
//  2. Fits a min-max scaler on the full series
//  3. Averages the last W raw observations
//  4. Feeds the last T scaled observations to a sequence model and unscales its output
//  5. Blends both estimates and prints the report on stdout
//
// Usage:
//
//	predictor \
//	  -input=hospital_queue.csv \
//	  -column=waiting_time \
//	  -model=lstm \
//	  -model-path=lstm_wait_time_model.json
//
// Environment variables:
//
//	ADAPTER          - Adapter type (default: csv)
//	ADAPTER_*        - Adapter settings, e.g. ADAPTER_DSN, ADAPTER_TABLE
//	INPUT            - Input path for file-based adapters
//	COLUMN           - Wait-time column
//	MODEL            - Model type: lstm, byom, sagemaker (default: lstm)
//	MODEL_PATH       - LSTM artifact, local path or s3://bucket/key
//	BYOM_URL         - BYOM model server URL
//	MA_WINDOW        - Moving-average window (default: 5)
//	TIME_STEPS       - Model input length (default: 5)
//	WEIGHT_MODEL     - Model weight in the blend (default: 0.6)
//	WEIGHT_MA        - Moving-average weight in the blend (default: 0.4)
//	PUSHGATEWAY_URL  - Push run metrics to this Pushgateway
//	LOG_LEVEL        - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT       - Logging format: text, json (default: text)
//
// Exits 1 on any error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/waitcast/cmd/predictor/config"
	"github.com/HatiCode/waitcast/cmd/predictor/logger"
	"github.com/HatiCode/waitcast/cmd/predictor/metrics"
	"github.com/HatiCode/waitcast/cmd/predictor/models"
	"github.com/HatiCode/waitcast/pkg/adapters"
	"github.com/HatiCode/waitcast/pkg/artifact"
	"github.com/HatiCode/waitcast/pkg/features"
	"github.com/HatiCode/waitcast/pkg/report"
)

// version is set via ldflags at build time
var version = "dev"

const pushTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	slog.SetDefault(log)

	runID := uuid.NewString()
	log = log.With("run_id", runID)

	log.Info("starting waitcast predictor",
		"version", version,
		"adapter", cfg.Adapter,
		"model", cfg.Model,
	)

	if err := run(cfg, runID, log, os.Stdout); err != nil {
		log.Error("prediction failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, runID string, log *slog.Logger, out io.Writer) error {
	m := metrics.New(cfg.Adapter, cfg.Model)
	if cfg.PushgatewayURL != "" {
		defer pushMetrics(m, cfg.PushgatewayURL, runID, log)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	adapter, err := adapters.New(cfg.Adapter, cfg.AdapterConfig, int(cfg.Step.Seconds()))
	if err != nil {
		m.RecordError("adapter")
		return fmt.Errorf("adapter: %w", err)
	}
	if closer, ok := adapter.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close adapter", "error", err)
			}
		}()
	}

	model, err := models.New(ctx, cfg, &artifact.Opener{Region: cfg.AWSRegion}, log)
	if err != nil {
		m.RecordError("model")
		return err
	}

	p := New(
		adapter,
		model,
		features.NewBuilder(),
		Options{
			Window:    cfg.Window,
			MAWindow:  cfg.MAWindow,
			TimeSteps: cfg.TimeSteps,
			Weights:   cfg.Weights(),
		},
		log,
		m,
	)

	r, err := p.Run(ctx)
	if err != nil {
		return err
	}
	return report.Write(out, r)
}

// pushMetrics sends the run metrics on a fresh context so that a run that
// timed out still reports its failure.
func pushMetrics(m *metrics.Metrics, url, runID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := m.Push(ctx, url, runID); err != nil {
		log.Warn("failed to push metrics", "error", err)
		return
	}
	log.Debug("pushed metrics", "url", url)
}
