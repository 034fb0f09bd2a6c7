// Package models builds the configured sequence model.
package models

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/HatiCode/waitcast/cmd/predictor/config"
	"github.com/HatiCode/waitcast/pkg/models"
)

// Opener fetches model artifacts. *artifact.Opener satisfies it.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// New creates the model named by cfg.Model.
func New(ctx context.Context, cfg *config.Config, opener Opener, logger *slog.Logger) (models.Model, error) {
	switch cfg.Model {
	case "lstm":
		return newLSTM(ctx, cfg, opener, logger)

	case "byom":
		tlsConfig, err := cfg.TLS.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("byom: %w", err)
		}
		logger.Info("initializing BYOM model",
			"url", cfg.BYOMURL,
			"response_path", cfg.ResponsePath,
			"mtls", tlsConfig != nil,
		)
		return models.NewBYOMModel(cfg.BYOMURL, cfg.ResponsePath, tlsConfig), nil

	case "sagemaker":
		logger.Info("initializing SageMaker model",
			"endpoint", cfg.SageMakerEndpoint,
			"region", cfg.AWSRegion,
		)
		m, err := models.NewSageMakerModel(cfg.SageMakerEndpoint, cfg.AWSRegion, cfg.ResponsePath)
		if err != nil {
			return nil, err
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown model %q", cfg.Model)
	}
}

func newLSTM(ctx context.Context, cfg *config.Config, opener Opener, logger *slog.Logger) (models.Model, error) {
	rc, err := opener.Open(ctx, cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	defer rc.Close()

	m, err := models.LoadLSTM(rc)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}
	if m.TimeSteps() != cfg.TimeSteps {
		return nil, fmt.Errorf("load model %s: %w: artifact expects %d time steps, configured %d",
			cfg.ModelPath, models.ErrIncompatibleShape, m.TimeSteps(), cfg.TimeSteps)
	}

	logger.Info("initializing LSTM model",
		"artifact", cfg.ModelPath,
		"name", m.Name(),
		"time_steps", m.TimeSteps(),
	)
	return m, nil
}
