package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Defaults reproducing the historical hospital queue export.
const (
	DefaultCSVPath   = "hospital_queue.csv"
	DefaultCSVColumn = "waiting_time"
)

// New creates an adapter based on kind and generic configuration map.
// This is the central extension point for adding new adapter types.
//
// Supported kinds: csv, prometheus, victoriametrics, http, redis, postgres,
// sqlite, influxdb.
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string, stepSeconds int) (Adapter, error) {
	switch kind {
	case "", "csv":
		return newCSV(config)
	case "prometheus":
		return newPrometheus(config, stepSeconds)
	case "victoriametrics":
		return newVictoriaMetrics(config, stepSeconds)
	case "http":
		return newHTTP(config, stepSeconds)
	case "redis":
		return newRedis(config)
	case "postgres":
		return newPostgres(config)
	case "sqlite":
		return newSQLite(config)
	case "influxdb":
		return newInflux(config, stepSeconds)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be csv, prometheus, victoriametrics, http, redis, postgres, sqlite, or influxdb)", kind)
	}
}

func newCSV(config map[string]string) (Adapter, error) {
	path := config["path"]
	if path == "" {
		path = DefaultCSVPath
	}
	column := config["column"]
	if column == "" {
		column = DefaultCSVColumn
	}

	var delim rune
	if d := config["delimiter"]; d != "" {
		if utf8.RuneCountInString(d) != 1 {
			return nil, fmt.Errorf("csv adapter 'delimiter' must be a single character, got %q", d)
		}
		delim, _ = utf8.DecodeRuneInString(d)
	}

	return &CSVAdapter{Path: path, Column: column, Delimiter: delim}, nil
}

func newPrometheus(config map[string]string, stepSeconds int) (Adapter, error) {
	query := config["query"]
	if query == "" {
		return nil, fmt.Errorf("prometheus adapter requires 'query' config")
	}

	url := config["url"]
	if url == "" {
		url = "http://localhost:9090"
	}

	return &PrometheusAdapter{
		ServerURL:   url,
		Query:       query,
		StepSeconds: stepSeconds,
	}, nil
}

func newVictoriaMetrics(config map[string]string, stepSeconds int) (Adapter, error) {
	query := config["query"]
	if query == "" {
		return nil, fmt.Errorf("victoriametrics adapter requires 'query' config")
	}

	url := config["url"]
	if url == "" {
		url = "http://localhost:8428"
	}

	return &VictoriaMetricsAdapter{
		ServerURL:   url,
		Query:       query,
		StepSeconds: stepSeconds,
	}, nil
}

func newHTTP(config map[string]string, stepSeconds int) (Adapter, error) {
	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	ad := &HTTPAdapter{
		URL:             config["url"],
		Method:          config["method"],
		Headers:         headers,
		Body:            config["body"],
		ValuePath:       config["valuePath"],
		TimestampPath:   config["timestampPath"],
		TimestampFormat: config["timestampFormat"],
		StepSeconds:     stepSeconds,
		TemplateVars:    templateVars,
	}
	if err := ad.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}
	return ad, nil
}

func newRedis(config map[string]string) (Adapter, error) {
	addr := config["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}
	db, err := intOption(config, "db", 0)
	if err != nil {
		return nil, err
	}
	limit, err := intOption(config, "limit", 0)
	if err != nil {
		return nil, err
	}

	ad, err := NewRedisAdapter(addr, config["password"], db, config["key"])
	if err != nil {
		return nil, fmt.Errorf("redis adapter: %w", err)
	}
	ad.Limit = limit
	ad.Field = config["field"]
	return ad, nil
}

func newPostgres(config map[string]string) (Adapter, error) {
	if config["dsn"] == "" {
		return nil, fmt.Errorf("postgres adapter requires 'dsn' config")
	}
	q, err := tableOptions("postgres", config)
	if err != nil {
		return nil, err
	}
	return &PostgresAdapter{
		DSN:        config["dsn"],
		Table:      q.Table,
		Column:     q.Column,
		OrderBy:    q.OrderBy,
		TimeColumn: q.TimeColumn,
	}, nil
}

func newSQLite(config map[string]string) (Adapter, error) {
	if config["path"] == "" {
		return nil, fmt.Errorf("sqlite adapter requires 'path' config")
	}
	q, err := tableOptions("sqlite", config)
	if err != nil {
		return nil, err
	}
	return &SQLiteAdapter{
		Path:       config["path"],
		Table:      q.Table,
		Column:     q.Column,
		OrderBy:    q.OrderBy,
		TimeColumn: q.TimeColumn,
	}, nil
}

func newInflux(config map[string]string, stepSeconds int) (Adapter, error) {
	for _, k := range []string{"url", "org", "query"} {
		if config[k] == "" {
			return nil, fmt.Errorf("influxdb adapter requires '%s' config", k)
		}
	}
	return &InfluxAdapter{
		URL:         config["url"],
		Token:       config["token"],
		Org:         config["org"],
		Query:       config["query"],
		StepSeconds: stepSeconds,
	}, nil
}

func tableOptions(kind string, config map[string]string) (tableQuery, error) {
	q := tableQuery{
		Table:      config["table"],
		Column:     config["column"],
		OrderBy:    config["orderBy"],
		TimeColumn: config["timeColumn"],
	}
	if q.Column == "" {
		q.Column = DefaultCSVColumn
	}
	if q.OrderBy == "" {
		q.OrderBy = "id"
	}
	if err := q.validate(); err != nil {
		return tableQuery{}, fmt.Errorf("%s adapter: %w", kind, err)
	}
	return q, nil
}

func intOption(config map[string]string, key string, def int) (int, error) {
	raw := config[key]
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' config %q: %w", key, raw, err)
	}
	return n, nil
}
