package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New("csv", "lstm")

	m.RecordCollect(0.2)
	m.RecordPredict(0.01)
	m.SetSeriesLength(120)
	m.SetPredictions(30, 50, 42, time.Unix(1700000000, 0))
	m.RecordError("collect")
	m.RecordError("collect")

	if got := testutil.ToFloat64(m.SeriesLength); got != 120 {
		t.Errorf("series length = %v, want 120", got)
	}
	if got := testutil.ToFloat64(m.Prediction.WithLabelValues("hybrid")); got != 42 {
		t.Errorf("hybrid = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.LastSuccess); got != 1700000000 {
		t.Errorf("last success = %v", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("collect")); got != 2 {
		t.Errorf("errors = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.AdapterCollectSeconds); n != 1 {
		t.Errorf("collect histogram count = %d, want 1", n)
	}
}

func TestMetrics_IsolatedRegistries(t *testing.T) {
	a := New("csv", "lstm")
	b := New("csv", "lstm")
	a.SetSeriesLength(3)

	if got := testutil.ToFloat64(b.SeriesLength); got != 0 {
		t.Errorf("registries must not share state, got %v", got)
	}
}

func TestMetrics_Push(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := New("csv", "lstm")
	m.SetPredictions(30, 50, 42, time.Now())

	if err := m.Push(context.Background(), server.URL, "run-123"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if gotPath != "/metrics/job/waitcast_predictor/run_id/run-123" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotBody, "waitcast_prediction_minutes") {
		t.Error("pushed body does not contain prediction metric")
	}
}

func TestMetrics_PushError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if err := New("csv", "lstm").Push(context.Background(), server.URL, "run-1"); err == nil {
		t.Fatal("expected push error")
	}
}
