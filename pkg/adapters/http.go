package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/waitcast/pkg/httpx"
)

// HTTPAdapter calls a JSON REST endpoint, typically a hospital queue management
// system's history API, and extracts wait times with gjson paths.
//
// Body and header values are Go templates rendered with:
//
//	{{.WindowSeconds}} {{.Start}} {{.End}} {{.Step}} {{.StartRFC3339}} {{.EndRFC3339}}
//
// plus every key of TemplateVars (API tokens and the like).
//
// Example:
//
//	adapter := &HTTPAdapter{
//	    URL:           "https://queue.example.org/api/visits",
//	    Headers:       map[string]string{"Authorization": "Bearer {{.Token}}"},
//	    ValuePath:     "visits.#.wait_minutes",
//	    TimestampPath: "visits.#.called_at",
//	}
type HTTPAdapter struct {
	// URL is the endpoint to call (required)
	URL string

	// Method defaults to GET.
	Method string

	// Headers are rendered as templates before sending.
	Headers map[string]string

	// Body is the request body template (for POST/PUT).
	Body string

	// ValuePath is the gjson path of the wait-time values, e.g. "data.#.value".
	ValuePath string

	// TimestampPath is the gjson path of the matching timestamps.
	// Must return the same number of elements as ValuePath.
	TimestampPath string

	// TimestampFormat is "rfc3339" (default), "unix" or "unix_milli".
	TimestampFormat string

	// StepSeconds is exposed to templates as {{.Step}} (defaults to 60s if <= 0).
	StepSeconds int

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are custom variables available in Body and Headers templates.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Collect implements Adapter.
func (h *HTTPAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	if err := h.ValidateConfig(); err != nil {
		return &DataFrame{}, fmt.Errorf("http adapter: %w", err)
	}

	step := h.StepSeconds
	if step <= 0 {
		step = 60
	}

	now := time.Now().UTC().Truncate(time.Second)
	start := windowStart(now, windowSeconds)

	data := map[string]any{
		"WindowSeconds": windowSeconds,
		"Start":         start.Unix(),
		"End":           now.Unix(),
		"Step":          step,
		"StartRFC3339":  start.Format(time.RFC3339),
		"EndRFC3339":    now.Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		data[k] = v
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if h.Body != "" {
		rendered, err := renderTemplate(h.Body, data)
		if err != nil {
			return &DataFrame{}, fmt.Errorf("http adapter: render body: %w", err)
		}
		body = strings.NewReader(rendered)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, body)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("http adapter: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, data)
		if err != nil {
			return &DataFrame{}, fmt.Errorf("http adapter: render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = httpx.NewClient(nil, 10*time.Second)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("http adapter: %w", err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		return &DataFrame{}, fmt.Errorf("http adapter: %w", err)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("http adapter: read response: %w", err)
	}

	values := gjson.GetBytes(payload, h.ValuePath)
	if !values.Exists() {
		return &DataFrame{}, fmt.Errorf("http adapter: value path %q not found in response", h.ValuePath)
	}
	stamps := gjson.GetBytes(payload, h.TimestampPath)
	if !stamps.Exists() {
		return &DataFrame{}, fmt.Errorf("http adapter: timestamp path %q not found in response", h.TimestampPath)
	}

	vals := values.Array()
	tss := stamps.Array()
	if len(vals) != len(tss) {
		return &DataFrame{}, fmt.Errorf("http adapter: value count (%d) != timestamp count (%d)", len(vals), len(tss))
	}

	type point struct {
		ts    time.Time
		value float64
	}
	points := make([]point, len(vals))
	for i := range vals {
		ts, err := h.parseTimestamp(tss[i])
		if err != nil {
			return &DataFrame{}, fmt.Errorf("http adapter: timestamp[%d]: %w", i, err)
		}
		points[i] = point{ts: ts, value: vals[i].Float()}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].ts.Before(points[j].ts) })

	rows := make([]Row, len(points))
	for i, p := range points {
		rows[i] = Row{
			"ts":    p.ts.UTC().Format(time.RFC3339),
			"value": p.value,
		}
	}
	return &DataFrame{Rows: rows}, nil
}

func (h *HTTPAdapter) parseTimestamp(value gjson.Result) (time.Time, error) {
	switch h.TimestampFormat {
	case "", "rfc3339":
		return time.Parse(time.RFC3339, value.String())
	case "unix":
		return time.Unix(int64(value.Float()), 0).UTC(), nil
	case "unix_milli":
		return time.UnixMilli(int64(value.Float())).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", h.TimestampFormat)
	}
}

// ValidateConfig checks if the adapter configuration is valid.
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return fmt.Errorf("url is required")
	}
	if h.ValuePath == "" || h.TimestampPath == "" {
		return fmt.Errorf("valuePath and timestampPath are required")
	}
	switch h.TimestampFormat {
	case "", "rfc3339", "unix", "unix_milli":
		return nil
	default:
		return fmt.Errorf("invalid timestampFormat: %s (must be rfc3339, unix, or unix_milli)", h.TimestampFormat)
	}
}

// renderTemplate renders tmplStr with data. Strings without actions are returned as is.
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
