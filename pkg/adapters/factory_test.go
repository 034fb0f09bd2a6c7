package adapters

import (
	"testing"
)

func TestNew_CSVDefaults(t *testing.T) {
	adapter, err := New("csv", map[string]string{}, 60)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	csvAdapter, ok := adapter.(*CSVAdapter)
	if !ok {
		t.Fatalf("expected *CSVAdapter, got %T", adapter)
	}
	if csvAdapter.Path != "hospital_queue.csv" {
		t.Errorf("Path = %s, want hospital_queue.csv", csvAdapter.Path)
	}
	if csvAdapter.Column != "waiting_time" {
		t.Errorf("Column = %s, want waiting_time", csvAdapter.Column)
	}
	if csvAdapter.Delimiter != 0 {
		t.Errorf("Delimiter = %q, want default", csvAdapter.Delimiter)
	}
}

func TestNew_EmptyKindIsCSV(t *testing.T) {
	adapter, err := New("", map[string]string{"path": "q.csv", "column": "wait", "delimiter": ";"}, 60)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	csvAdapter := adapter.(*CSVAdapter)
	if csvAdapter.Path != "q.csv" || csvAdapter.Column != "wait" || csvAdapter.Delimiter != ';' {
		t.Errorf("unexpected adapter %+v", csvAdapter)
	}
}

func TestNew_CSVBadDelimiter(t *testing.T) {
	if _, err := New("csv", map[string]string{"delimiter": ";;"}, 60); err == nil {
		t.Fatal("expected error for multi-character delimiter")
	}
}

func TestNew_Prometheus(t *testing.T) {
	config := map[string]string{
		"url":   "http://prometheus:9090",
		"query": "queue_wait_minutes",
	}

	adapter, err := New("prometheus", config, 60)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	promAdapter, ok := adapter.(*PrometheusAdapter)
	if !ok {
		t.Fatalf("expected *PrometheusAdapter, got %T", adapter)
	}
	if promAdapter.ServerURL != "http://prometheus:9090" {
		t.Errorf("ServerURL = %s, want http://prometheus:9090", promAdapter.ServerURL)
	}
	if promAdapter.Query != "queue_wait_minutes" {
		t.Errorf("Query = %s, want queue_wait_minutes", promAdapter.Query)
	}
	if promAdapter.StepSeconds != 60 {
		t.Errorf("StepSeconds = %d, want 60", promAdapter.StepSeconds)
	}
}

func TestNew_PrometheusDefaultURL(t *testing.T) {
	adapter, err := New("prometheus", map[string]string{"query": "queue_wait_minutes"}, 60)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	promAdapter := adapter.(*PrometheusAdapter)
	if promAdapter.ServerURL != "http://localhost:9090" {
		t.Errorf("ServerURL = %s, want default http://localhost:9090", promAdapter.ServerURL)
	}
}

func TestNew_VictoriaMetrics(t *testing.T) {
	config := map[string]string{
		"url":   "http://vm:8428",
		"query": "avg(queue_wait_minutes)",
	}

	adapter, err := New("victoriametrics", config, 120)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	vmAdapter, ok := adapter.(*VictoriaMetricsAdapter)
	if !ok {
		t.Fatalf("expected *VictoriaMetricsAdapter, got %T", adapter)
	}
	if vmAdapter.ServerURL != "http://vm:8428" {
		t.Errorf("ServerURL = %s, want http://vm:8428", vmAdapter.ServerURL)
	}
	if vmAdapter.StepSeconds != 120 {
		t.Errorf("StepSeconds = %d, want 120", vmAdapter.StepSeconds)
	}
}

func TestNew_HTTP(t *testing.T) {
	config := map[string]string{
		"url":           "https://queue.example.org/api/visits",
		"valuePath":     "visits.#.wait_minutes",
		"timestampPath": "visits.#.called_at",
		"headers":       `{"Authorization": "Bearer {{.Token}}"}`,
		"templateVars":  `{"Token": "abc"}`,
	}

	adapter, err := New("http", config, 60)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	httpAdapter, ok := adapter.(*HTTPAdapter)
	if !ok {
		t.Fatalf("expected *HTTPAdapter, got %T", adapter)
	}
	if httpAdapter.ValuePath != "visits.#.wait_minutes" {
		t.Errorf("ValuePath = %s", httpAdapter.ValuePath)
	}
	if httpAdapter.Headers["Authorization"] != "Bearer {{.Token}}" {
		t.Errorf("Headers = %v", httpAdapter.Headers)
	}
	if httpAdapter.TemplateVars["Token"] != "abc" {
		t.Errorf("TemplateVars = %v", httpAdapter.TemplateVars)
	}
}

func TestNew_Redis(t *testing.T) {
	adapter, err := New("redis", map[string]string{"key": "queue:er", "limit": "200", "db": "2", "field": "wait"}, 60)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	redisAdapter, ok := adapter.(*RedisAdapter)
	if !ok {
		t.Fatalf("expected *RedisAdapter, got %T", adapter)
	}
	defer redisAdapter.Close()

	if redisAdapter.Key != "queue:er" || redisAdapter.Limit != 200 || redisAdapter.Field != "wait" {
		t.Errorf("unexpected adapter %+v", redisAdapter)
	}
}

func TestNew_SQLAdapters(t *testing.T) {
	pg, err := New("postgres", map[string]string{"dsn": "postgres://localhost/queue", "table": "visits"}, 60)
	if err != nil {
		t.Fatalf("New postgres failed: %v", err)
	}
	pgAdapter := pg.(*PostgresAdapter)
	if pgAdapter.Column != "waiting_time" || pgAdapter.OrderBy != "id" {
		t.Errorf("postgres defaults not applied: %+v", pgAdapter)
	}

	lite, err := New("sqlite", map[string]string{"path": "queue.db", "table": "visits", "column": "wait", "orderBy": "called_at", "timeColumn": "called_at"}, 60)
	if err != nil {
		t.Fatalf("New sqlite failed: %v", err)
	}
	liteAdapter := lite.(*SQLiteAdapter)
	if liteAdapter.Column != "wait" || liteAdapter.OrderBy != "called_at" || liteAdapter.TimeColumn != "called_at" {
		t.Errorf("unexpected sqlite adapter %+v", liteAdapter)
	}
}

func TestNew_Influx(t *testing.T) {
	adapter, err := New("influxdb", map[string]string{"url": "http://influx:8086", "org": "hospital", "query": "from(bucket: \"q\")"}, 30)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	influxAdapter := adapter.(*InfluxAdapter)
	if influxAdapter.Org != "hospital" || influxAdapter.StepSeconds != 30 {
		t.Errorf("unexpected adapter %+v", influxAdapter)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		config map[string]string
	}{
		{"unknown kind", "unknown", map[string]string{}},
		{"prometheus missing query", "prometheus", map[string]string{"url": "http://prometheus:9090"}},
		{"victoriametrics missing query", "victoriametrics", map[string]string{"url": "http://vm:8428"}},
		{"http missing url", "http", map[string]string{"valuePath": "v", "timestampPath": "t"}},
		{"http missing paths", "http", map[string]string{"url": "https://queue.example.org"}},
		{"http bad headers", "http", map[string]string{"url": "u", "valuePath": "v", "timestampPath": "t", "headers": "{"}},
		{"redis missing key", "redis", map[string]string{}},
		{"redis bad limit", "redis", map[string]string{"key": "k", "limit": "many"}},
		{"postgres missing dsn", "postgres", map[string]string{"table": "visits"}},
		{"postgres missing table", "postgres", map[string]string{"dsn": "postgres://localhost/queue"}},
		{"sqlite missing path", "sqlite", map[string]string{"table": "visits"}},
		{"influxdb missing query", "influxdb", map[string]string{"url": "http://influx:8086", "org": "o"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.kind, tt.config, 60); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
