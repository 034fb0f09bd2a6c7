package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/HatiCode/waitcast/cmd/predictor/config"
)

// constantArtifact always outputs a scaled 1.0, the series maximum.
const constantArtifact = `{
	"name": "lstm",
	"timeSteps": 5,
	"features": 1,
	"layers": [
		{"type": "lstm", "units": 1, "kernel": [[0, 0, 0, 0]], "recurrentKernel": [[0, 0, 0, 0]], "bias": [0, 0, 0, 0]},
		{"type": "dense", "units": 1, "kernel": [[0]], "bias": [1]}
	]
}`

func runConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "hospital_queue.csv")
	csv := "patient_id,arrival,waiting_time\n1,08:00,10\n2,08:05,20\n3,08:10,30\n4,08:15,40\n5,08:20,50\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}
	modelPath := filepath.Join(dir, "lstm_wait_time_model.json")
	if err := os.WriteFile(modelPath, []byte(constantArtifact), 0o600); err != nil {
		t.Fatal(err)
	}

	return &config.Config{
		Adapter:       "csv",
		AdapterConfig: map[string]string{"path": csvPath, "column": "waiting_time"},
		Window:        time.Hour,
		Step:          time.Minute,
		Model:         "lstm",
		ModelPath:     modelPath,
		MAWindow:      5,
		TimeSteps:     5,
		WeightModel:   0.6,
		WeightMA:      0.4,
		Timeout:       10 * time.Second,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	var out bytes.Buffer
	if err := run(runConfig(t), "run-1", testLogger(), &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "\n===== WAIT TIME PREDICTION =====\n" +
		"Moving Average Prediction: 30.00 minutes\n" +
		"LSTM Prediction: 50.00 minutes\n" +
		"Hybrid Prediction: 42.00 minutes\n" +
		"================================\n"
	if out.String() != want {
		t.Errorf("report mismatch\ngot:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestRun_PushesMetrics(t *testing.T) {
	var pushes atomic.Int32
	var path atomic.Value
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		path.Store(r.URL.Path)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	cfg := runConfig(t)
	cfg.PushgatewayURL = gateway.URL

	if err := run(cfg, "run-42", testLogger(), io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	if pushes.Load() != 1 {
		t.Fatalf("pushes = %d, want 1", pushes.Load())
	}
	if got := path.Load().(string); !strings.HasSuffix(got, "/run_id/run-42") {
		t.Errorf("push path = %q", got)
	}
}

// pushedErrors decodes a Pushgateway push and returns waitcast_errors_total by stage.
func pushedErrors(t *testing.T, r *http.Request) map[string]float64 {
	t.Helper()

	errs := make(map[string]float64)
	dec := expfmt.NewDecoder(r.Body, expfmt.ResponseFormat(r.Header))
	for {
		var mf dto.MetricFamily
		if err := dec.Decode(&mf); err != nil {
			if err != io.EOF {
				t.Errorf("decode push: %v", err)
			}
			return errs
		}
		if mf.GetName() != "waitcast_errors_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "stage" {
					errs[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
}

func TestRun_PushesFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		stage  string
	}{
		{"model load failure", func(c *config.Config) { c.ModelPath = "/nonexistent/model.json" }, "model"},
		{"unknown adapter", func(c *config.Config) { c.Adapter = "kafka" }, "adapter"},
		{"collect failure", func(c *config.Config) { c.AdapterConfig["column"] = "wait" }, "collect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pushes atomic.Int32
			var stages atomic.Value
			gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				pushes.Add(1)
				stages.Store(pushedErrors(t, r))
				w.WriteHeader(http.StatusOK)
			}))
			defer gateway.Close()

			cfg := runConfig(t)
			cfg.PushgatewayURL = gateway.URL
			tt.mutate(cfg)

			if err := run(cfg, "run-7", testLogger(), io.Discard); err == nil {
				t.Fatal("expected error")
			}
			if pushes.Load() != 1 {
				t.Fatalf("pushes = %d, want 1", pushes.Load())
			}
			got := stages.Load().(map[string]float64)
			if got[tt.stage] != 1 {
				t.Errorf("pushed errors = %v, want %s=1", got, tt.stage)
			}
		})
	}
}

func TestRun_PushesAfterTimeout(t *testing.T) {
	var pushes atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	cfg := runConfig(t)
	cfg.PushgatewayURL = gateway.URL
	cfg.Timeout = time.Nanosecond

	// The outcome of the run itself depends on scheduling; the push does not.
	_ = run(cfg, "run-8", testLogger(), io.Discard)
	if pushes.Load() != 1 {
		t.Fatalf("pushes = %d, want 1", pushes.Load())
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown adapter", func(c *config.Config) { c.Adapter = "kafka" }},
		{"missing input", func(c *config.Config) { c.AdapterConfig["path"] = "/nonexistent/queue.csv" }},
		{"missing column", func(c *config.Config) { c.AdapterConfig["column"] = "wait" }},
		{"missing artifact", func(c *config.Config) { c.ModelPath = "/nonexistent/model.json" }},
		{"series shorter than window", func(c *config.Config) { c.MAWindow = 6 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := runConfig(t)
			tt.mutate(cfg)

			var out bytes.Buffer
			if err := run(cfg, "run-1", testLogger(), &out); err == nil {
				t.Fatal("expected error")
			}
			if out.Len() != 0 {
				t.Errorf("no report expected on failure, got %q", out.String())
			}
		})
	}
}
