package adapters

import (
	"context"
	"net/http"
)

// VictoriaMetricsAdapter reads wait times from VictoriaMetrics through its
// Prometheus-compatible query API. Responses are aggregated exactly like
// PrometheusAdapter's.
type VictoriaMetricsAdapter struct {
	// ServerURL is the base URL to VictoriaMetrics, e.g. http://victoria-metrics:8428
	ServerURL string
	// Query is the MetricsQL/PromQL expression to evaluate.
	Query string
	// StepSeconds controls the resolution (defaults to 60s if <= 0).
	StepSeconds int
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (v *VictoriaMetricsAdapter) Name() string { return "victoriametrics" }

// Collect implements Adapter.
func (v *VictoriaMetricsAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	return rangeQuery(ctx, "victoriametrics", v.ServerURL, v.Query, v.StepSeconds, windowSeconds, v.HTTPClient)
}
