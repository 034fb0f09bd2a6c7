package adapters

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// InfluxAdapter runs a Flux query against InfluxDB 2.x and reads the _value
// column of every returned record.
//
// Query is a template rendered with {{.WindowSeconds}}, {{.StartRFC3339}},
// {{.EndRFC3339}} and {{.Step}}, for example:
//
//	from(bucket: "queue")
//	  |> range(start: {{.StartRFC3339}}, stop: {{.EndRFC3339}})
//	  |> filter(fn: (r) => r._measurement == "visits" and r._field == "wait_minutes")
type InfluxAdapter struct {
	URL   string
	Token string
	Org   string
	Query string
	// StepSeconds is exposed to the query template as {{.Step}}.
	StepSeconds int
}

func (a *InfluxAdapter) Name() string { return "influxdb" }

// Collect implements Adapter. Records keep result order; add |> sort(columns: ["_time"])
// to the query when the source does not return them chronologically.
func (a *InfluxAdapter) Collect(ctx context.Context, windowSeconds int) (*DataFrame, error) {
	if a.URL == "" || a.Org == "" || a.Query == "" {
		return &DataFrame{}, fmt.Errorf("influxdb adapter: url, org and query are required")
	}

	now := time.Now().UTC().Truncate(time.Second)
	start := windowStart(now, windowSeconds)
	flux, err := renderTemplate(a.Query, map[string]any{
		"WindowSeconds": windowSeconds,
		"Step":          a.StepSeconds,
		"StartRFC3339":  start.Format(time.RFC3339),
		"EndRFC3339":    now.Format(time.RFC3339),
	})
	if err != nil {
		return &DataFrame{}, fmt.Errorf("influxdb adapter: render query: %w", err)
	}

	client := influxdb2.NewClient(a.URL, a.Token)
	defer client.Close()

	result, err := client.QueryAPI(a.Org).Query(ctx, flux)
	if err != nil {
		return &DataFrame{}, fmt.Errorf("influxdb adapter: query: %w", err)
	}
	defer func() { _ = result.Close() }()

	var rows []Row
	for result.Next() {
		rec := result.Record()
		var v float64
		switch x := rec.Value().(type) {
		case float64:
			v = x
		case int64:
			v = float64(x)
		case uint64:
			v = float64(x)
		default:
			return &DataFrame{}, fmt.Errorf("influxdb adapter: record %d: unexpected value type %T", len(rows), x)
		}
		rows = append(rows, Row{
			"ts":    rec.Time().UTC().Format(time.RFC3339),
			"value": v,
		})
	}
	if err := result.Err(); err != nil {
		return &DataFrame{}, fmt.Errorf("influxdb adapter: %w", err)
	}
	return &DataFrame{Rows: rows}, nil
}
