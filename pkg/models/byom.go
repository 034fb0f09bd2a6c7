package models

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/waitcast/pkg/httpx"
)

// DefaultResponsePath extracts the first value of a TF-Serving predict response:
//
//	{"predictions": [[0.42]]}
const DefaultResponsePath = "predictions.0.0"

// BYOMModel delegates predictions to an external model server (TensorFlow
// Serving, a custom Flask app, a Triton HTTP front end). The window is sent as
//
//	{"instances": [[[x1], [x2], ..., [xT]]]}
//
// and the scaled prediction is read from the response with a gjson path.
type BYOMModel struct {
	endpoint     string
	responsePath string
	client       *http.Client
}

type byomRequest struct {
	Instances [][][]float64 `json:"instances"`
}

// NewBYOMModel creates a BYOM model calling endpoint. An empty responsePath
// selects DefaultResponsePath; a nil tlsConfig uses the system defaults.
func NewBYOMModel(endpoint, responsePath string, tlsConfig *tls.Config) *BYOMModel {
	if responsePath == "" {
		responsePath = DefaultResponsePath
	}
	return &BYOMModel{
		endpoint:     endpoint,
		responsePath: responsePath,
		client:       httpx.NewClient(tlsConfig, 30*time.Second),
	}
}

// Name returns the model identifier.
func (m *BYOMModel) Name() string {
	return "byom"
}

// Predict implements Model by calling the external service.
func (m *BYOMModel) Predict(ctx context.Context, input Tensor) (float64, error) {
	if len(input.Data) == 0 {
		return 0, fmt.Errorf("byom: %w: empty input", ErrIncompatibleShape)
	}

	body, err := json.Marshal(byomRequest{Instances: input.Nested()})
	if err != nil {
		return 0, fmt.Errorf("byom: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("byom: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("byom: http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		return 0, fmt.Errorf("byom: %w", err)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("byom: read response: %w", err)
	}
	v, err := extractPrediction(payload, m.responsePath)
	if err != nil {
		return 0, fmt.Errorf("byom: %w", err)
	}
	return v, nil
}

// extractPrediction reads a numeric value at path from a JSON document.
func extractPrediction(payload []byte, path string) (float64, error) {
	if !gjson.ValidBytes(payload) {
		return 0, fmt.Errorf("decode response: invalid JSON")
	}
	res := gjson.GetBytes(payload, path)
	if !res.Exists() {
		return 0, fmt.Errorf("response has no value at %q", path)
	}
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("value at %q is %s, not a number", path, res.Type)
	}
	return res.Float(), nil
}
