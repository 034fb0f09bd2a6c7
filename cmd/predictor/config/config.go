// Package config provides configuration parsing for the predictor.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables (optionally seeded from a .env file)
//  3. YAML or JSON config file (-config-file / CONFIG_FILE)
//  4. Default values
//
// Adapter-specific settings come from ADAPTER_* environment variables and the
// config file's adapterConfig map; environment values win.
//
// Example config file:
//
//	adapter: postgres
//	adapterConfig:
//	  dsn: postgres://queue@db/his
//	  table: visits
//	  column: wait_minutes
//	model: lstm
//	modelPath: s3://models/wait/lstm_wait_time_model.json
//	weightModel: 0.7
//	weightMA: 0.3
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/HatiCode/waitcast/pkg/estimate"
	"github.com/HatiCode/waitcast/pkg/tls"
)

// Config holds all predictor configuration.
type Config struct {
	ConfigFile string
	LogFormat  string
	LogLevel   string
	TLS        tls.Config

	Adapter       string
	AdapterConfig map[string]string
	Input         string
	Column        string
	Window        time.Duration
	Step          time.Duration

	Model             string
	ModelPath         string
	BYOMURL           string
	SageMakerEndpoint string
	AWSRegion         string
	ResponsePath      string

	MAWindow    int
	TimeSteps   int
	WeightModel float64
	WeightMA    float64

	Timeout        time.Duration
	PushgatewayURL string
}

// Weights returns the blend weights.
func (c *Config) Weights() estimate.Weights {
	return estimate.Weights{Model: c.WeightModel, MovingAverage: c.WeightMA}
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Parse parses args (without the program name) into a validated Config.
// It returns flag.ErrHelp when -h is given.
func Parse(args []string) (*Config, error) {
	path := configFileArg(args)
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	k, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	fsFlags := flag.NewFlagSet("predictor", flag.ContinueOnError)

	fsFlags.StringVar(&cfg.ConfigFile, "config-file", path, "YAML or JSON config file")

	fsFlags.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", fileString(k, "logFormat", "text")), "Log format: text or json")
	fsFlags.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", fileString(k, "logLevel", "info")), "Log level: debug, info, warn, error")

	fsFlags.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", fileBool(k, "tls.enabled", false)), "Enable mTLS towards the BYOM model server")
	fsFlags.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", fileString(k, "tls.certFile", "")), "TLS client certificate file")
	fsFlags.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", fileString(k, "tls.keyFile", "")), "TLS client private key file")
	fsFlags.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", fileString(k, "tls.caFile", "")), "CA certificate file for verifying the model server")

	fsFlags.StringVar(&cfg.Adapter, "adapter", getEnv("ADAPTER", fileString(k, "adapter", "csv")), "Adapter type: csv, prometheus, victoriametrics, http, redis, postgres, sqlite, or influxdb")
	fsFlags.StringVar(&cfg.Input, "input", getEnv("INPUT", fileString(k, "input", "")), "Input path for file-based adapters (csv default: hospital_queue.csv)")
	fsFlags.StringVar(&cfg.Column, "column", getEnv("COLUMN", fileString(k, "column", "")), "Wait-time column (default: waiting_time)")
	fsFlags.DurationVar(&cfg.Window, "window", getEnvDuration("WINDOW", fileDuration(k, "window", 24*time.Hour)), "History window for time-indexed adapters")
	fsFlags.DurationVar(&cfg.Step, "step", getEnvDuration("STEP", fileDuration(k, "step", time.Minute)), "Sample resolution for query adapters")

	fsFlags.StringVar(&cfg.Model, "model", getEnv("MODEL", fileString(k, "model", "lstm")), "Sequence model: lstm, byom, or sagemaker")
	fsFlags.StringVar(&cfg.ModelPath, "model-path", getEnv("MODEL_PATH", fileString(k, "modelPath", "lstm_wait_time_model.json")), "LSTM artifact path or s3://bucket/key")
	fsFlags.StringVar(&cfg.BYOMURL, "byom-url", getEnv("BYOM_URL", fileString(k, "byomURL", "")), "BYOM model server URL (required when model=byom)")
	fsFlags.StringVar(&cfg.SageMakerEndpoint, "sagemaker-endpoint", getEnv("SAGEMAKER_ENDPOINT_NAME", fileString(k, "sagemakerEndpoint", "")), "SageMaker endpoint name (required when model=sagemaker)")
	fsFlags.StringVar(&cfg.AWSRegion, "aws-region", getEnv("AWS_REGION", fileString(k, "awsRegion", "eu-west-1")), "AWS region for S3 and SageMaker")
	fsFlags.StringVar(&cfg.ResponsePath, "response-path", getEnv("RESPONSE_PATH", fileString(k, "responsePath", "predictions.0.0")), "gjson path of the prediction in remote model responses")

	fsFlags.IntVar(&cfg.MAWindow, "ma-window", getEnvInt("MA_WINDOW", fileInt(k, "maWindow", 5)), "Moving-average window")
	fsFlags.IntVar(&cfg.TimeSteps, "time-steps", getEnvInt("TIME_STEPS", fileInt(k, "timeSteps", 5)), "Sequence model input length")
	fsFlags.Float64Var(&cfg.WeightModel, "weight-model", getEnvFloat("WEIGHT_MODEL", fileFloat(k, "weightModel", 0.6)), "Hybrid weight of the model prediction")
	fsFlags.Float64Var(&cfg.WeightMA, "weight-ma", getEnvFloat("WEIGHT_MA", fileFloat(k, "weightMA", 0.4)), "Hybrid weight of the moving average")

	fsFlags.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("TIMEOUT", fileDuration(k, "timeout", time.Minute)), "Overall run timeout")
	fsFlags.StringVar(&cfg.PushgatewayURL, "pushgateway-url", getEnv("PUSHGATEWAY_URL", fileString(k, "pushgatewayURL", "")), "Prometheus Pushgateway URL (empty disables push)")

	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}

	cfg.AdapterConfig = fileStringMap(k, "adapterConfig")
	for key, v := range parseAdapterConfig() {
		cfg.AdapterConfig[key] = v
	}
	if cfg.Input != "" {
		cfg.AdapterConfig["path"] = cfg.Input
	}
	if cfg.Column != "" {
		cfg.AdapterConfig["column"] = cfg.Column
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistent settings.
func (c *Config) Validate() error {
	if c.Adapter == "" {
		return errors.New("adapter cannot be empty")
	}
	if c.Window <= 0 {
		return errors.New("window must be > 0")
	}
	if c.Step <= 0 {
		return errors.New("step must be > 0")
	}
	if c.Step > c.Window {
		return fmt.Errorf("step (%v) cannot exceed window (%v)", c.Step, c.Window)
	}
	if c.MAWindow <= 0 {
		return fmt.Errorf("ma-window must be > 0, got %d", c.MAWindow)
	}
	if c.TimeSteps <= 0 {
		return fmt.Errorf("time-steps must be > 0, got %d", c.TimeSteps)
	}
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}

	switch c.Model {
	case "lstm":
		if c.ModelPath == "" {
			return errors.New("model-path is required when model=lstm")
		}
	case "byom":
		if c.BYOMURL == "" {
			return errors.New("byom-url is required when model=byom")
		}
	case "sagemaker":
		if c.SageMakerEndpoint == "" {
			return errors.New("sagemaker-endpoint is required when model=sagemaker")
		}
	default:
		return fmt.Errorf("invalid model %q (must be lstm, byom, or sagemaker)", c.Model)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat)
	}

	return c.TLS.Validate()
}

// configFileArg finds -config-file in args before the flag set is built.
func configFileArg(args []string) string {
	for i, a := range args {
		name := strings.TrimLeft(a, "-")
		if len(name) == len(a) {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config-file="); ok {
			return v
		}
		if name == "config-file" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func loadFile(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if path == "" {
		return k, nil
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}
	return k, nil
}

func fileString(k *koanf.Koanf, key, def string) string {
	if k.Exists(key) {
		return k.String(key)
	}
	return def
}

func fileInt(k *koanf.Koanf, key string, def int) int {
	if k.Exists(key) {
		return k.Int(key)
	}
	return def
}

func fileFloat(k *koanf.Koanf, key string, def float64) float64 {
	if k.Exists(key) {
		return k.Float64(key)
	}
	return def
}

func fileDuration(k *koanf.Koanf, key string, def time.Duration) time.Duration {
	if k.Exists(key) {
		return k.Duration(key)
	}
	return def
}

func fileBool(k *koanf.Koanf, key string, def bool) bool {
	if k.Exists(key) {
		return k.Bool(key)
	}
	return def
}

func fileStringMap(k *koanf.Koanf, key string) map[string]string {
	out := make(map[string]string)
	for name, v := range k.StringMap(key) {
		out[name] = v
	}
	return out
}

// parseAdapterConfig parses ADAPTER_* environment variables into a generic configuration map.
// Environment variable names are converted to camelCase for the map keys (ADAPTER_VALUE_PATH -> valuePath).
func parseAdapterConfig() map[string]string {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		if len(env) > 8 && env[:8] == "ADAPTER_" {
			parts := splitEnv(env)
			if len(parts) == 2 {
				key := toLowerCamelCase(parts[0][8:])
				config[key] = parts[1]
			}
		}
	}

	return config
}

func splitEnv(env string) []string {
	for i := 0; i < len(env); i++ {
		if env[i] == '=' {
			return []string{env[:i], env[i+1:]}
		}
	}
	return []string{env}
}

func toLowerCamelCase(s string) string {
	if s == "" {
		return s
	}
	parts := []rune(s)
	result := make([]rune, 0, len(parts))
	nextUpper := false
	for i, r := range parts {
		if r == '_' {
			nextUpper = true
			continue
		}
		if i == 0 {
			result = append(result, toLower(r))
		} else if nextUpper {
			result = append(result, r)
			nextUpper = false
		} else {
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
