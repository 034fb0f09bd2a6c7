package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/HatiCode/waitcast/pkg/httpx"
)

// PrometheusAdapter reads a queue wait-time gauge (for example the p50 of a
// triage-to-consultation histogram) through the Prometheus range query API.
// Rows have the form:
//
//	{"ts": RFC3339 string, "value": float64}
//
// If multiple series are returned, values sharing a timestamp are averaged so
// that per-desk series collapse into one queue-wide wait time.
type PrometheusAdapter struct {
	// ServerURL is the base URL to Prometheus, e.g. http://prometheus.monitoring.svc:9090
	ServerURL string
	// Query is the PromQL expression to evaluate.
	Query string
	// StepSeconds controls the resolution (defaults to 60s if <= 0).
	StepSeconds int
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (p *PrometheusAdapter) Name() string { return "prometheus" }

// Collect implements Adapter.
func (p *PrometheusAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	return rangeQuery(ctx, "prometheus", p.ServerURL, p.Query, p.StepSeconds, windowSeconds, p.HTTPClient)
}

// rangeQuery runs /api/v1/query_range against a Prometheus-compatible server.
func rangeQuery(ctx context.Context, source, serverURL, query string, stepSeconds, windowSeconds int, cli *http.Client) (*DataFrame, error) {
	if serverURL == "" || query == "" {
		return &DataFrame{}, fmt.Errorf("%s adapter: ServerURL and Query are required", source)
	}
	if windowSeconds <= 0 {
		return &DataFrame{}, fmt.Errorf("%s adapter: window must be > 0", source)
	}
	step := stepSeconds
	if step <= 0 {
		step = 60
	}

	// Step-aligned bounds keep samples on the same grid across runs.
	now := alignTimestamp(time.Now().UTC(), step)
	start := windowStart(now, windowSeconds)

	u, err := url.Parse(serverURL)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("%s adapter: invalid ServerURL: %w", source, err)
	}
	u.Path = "/api/v1/query_range"

	q := u.Query()
	q.Set("query", query)
	q.Set("start", strconv.FormatInt(start.Unix(), 10))
	q.Set("end", strconv.FormatInt(now.Unix(), 10))
	q.Set("step", strconv.Itoa(step))
	u.RawQuery = q.Encode()

	if cli == nil {
		cli = httpx.NewClient(nil, 10*time.Second)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("%s adapter: create request: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("%s adapter: %w", source, err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		return &DataFrame{}, fmt.Errorf("%s adapter: %w", source, err)
	}

	var pr PrometheusRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return &DataFrame{}, fmt.Errorf("%s adapter: decode response: %w", source, err)
	}
	if pr.Status != "success" {
		return &DataFrame{}, fmt.Errorf("%s adapter: query status %q", source, pr.Status)
	}

	rows, err := AggregateRangeResult(pr.Data.Result)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("%s adapter: %w", source, err)
	}
	return &DataFrame{Rows: rows}, nil
}

// PrometheusRangeResponse represents the response from Prometheus (and compatible systems).
type PrometheusRangeResponse struct {
	Status string              `json:"status"`
	Data   PrometheusRangeData `json:"data"`
}

// PrometheusRangeData contains the result data from a range query.
type PrometheusRangeData struct {
	ResultType string                 `json:"resultType"`
	Result     []PrometheusRangeSerie `json:"result"`
}

// PrometheusRangeSerie represents a single time series in the result.
type PrometheusRangeSerie struct {
	Metric map[string]string `json:"metric"`
	// Values is an array of [ <unix_time_float>, "<value_string>" ]
	Values [][]any `json:"values"`
}

// AggregateRangeResult merges series into rows sorted by timestamp, averaging
// values that share a timestamp. NaN samples are dropped.
func AggregateRangeResult(series []PrometheusRangeSerie) ([]Row, error) {
	type acc struct {
		sum   float64
		count int
	}
	byTS := make(map[int64]*acc)

	for _, s := range series {
		for _, pair := range s.Values {
			if len(pair) != 2 {
				return nil, fmt.Errorf("invalid value pair length: %d", len(pair))
			}

			ts, err := sampleTimestamp(pair[0])
			if err != nil {
				return nil, err
			}
			val, err := sampleValue(pair[1])
			if err != nil {
				return nil, err
			}
			if math.IsNaN(val) {
				continue
			}

			a, ok := byTS[ts]
			if !ok {
				a = &acc{}
				byTS[ts] = a
			}
			a.sum += val
			a.count++
		}
	}

	keys := make([]int64, 0, len(byTS))
	for ts := range byTS {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	rows := make([]Row, 0, len(keys))
	for _, ts := range keys {
		a := byTS[ts]
		rows = append(rows, Row{
			"ts":    time.Unix(ts, 0).UTC().Format(time.RFC3339),
			"value": a.sum / float64(a.count),
		})
	}
	return rows, nil
}

func sampleTimestamp(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("parse timestamp: %w", err)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func sampleValue(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("parse value: %w", err)
		}
		return f, nil
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}
