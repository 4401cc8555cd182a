package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
api_base_url: "http://localhost:8080"
api_token: "abc123"
request_timeout: 5s
max_attempts: 4
refresh_timeout: 1m
db_path: /tmp/agenda.db
log_level: DEBUG
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "http://localhost:8080")
	}
	if cfg.APIToken != "abc123" {
		t.Errorf("APIToken = %q, want %q", cfg.APIToken, "abc123")
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.MaxAttempts)
	}
	if cfg.RefreshTimeout != time.Minute {
		t.Errorf("RefreshTimeout = %v, want 1m", cfg.RefreshTimeout)
	}
	if cfg.DBPath != "/tmp/agenda.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", cfg.Level())
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
api_base_url: "https://api.example.com"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want default 10s", cfg.RequestTimeout)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want default 3", cfg.MaxAttempts)
	}
	if cfg.RefreshTimeout != 30*time.Second {
		t.Errorf("RefreshTimeout = %v, want default 30s", cfg.RefreshTimeout)
	}
	if filepath.Base(cfg.DBPath) != "cache.db" {
		t.Errorf("DBPath = %q, want default cache.db", cfg.DBPath)
	}
	if cfg.LogLevel != "info" || cfg.Level() != slog.LevelInfo {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
	if cfg.DrugLabelURL != "https://api.fda.gov" {
		t.Errorf("DrugLabelURL = %q, want default https://api.fda.gov", cfg.DrugLabelURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing api_base_url":      `api_token: "token"`,
		"invalid api_base_url":      `api_base_url: "not-a-url"`,
		"ftp api_base_url":          `api_base_url: "ftp://files.example.com"`,
		"request_timeout too short": "api_base_url: http://localhost\nrequest_timeout: 500ms",
		"request_timeout too long":  "api_base_url: http://localhost\nrequest_timeout: 3m",
		"max_attempts too high":     "api_base_url: http://localhost\nmax_attempts: 11",
		"max_attempts negative":     "api_base_url: http://localhost\nmax_attempts: -1",
		"refresh_timeout too long":  "api_base_url: http://localhost\nrefresh_timeout: 10m",
		"unknown log level":         "api_base_url: http://localhost\nlog_level: chatty",
		"invalid drug_label_url":    "api_base_url: http://localhost\ndrug_label_url: fda",
		"unknown key":               "api_base_url: http://localhost\nunknown_field: oops",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api_base_url: "http://localhost:8080"
api_token: "from-file"
`)
	t.Setenv("AGENDASYNC_API_TOKEN", "from-env")
	t.Setenv("AGENDASYNC_MAX_ATTEMPTS", "7")
	t.Setenv("AGENDASYNC_REQUEST_TIMEOUT", "20s")
	t.Setenv("AGENDASYNC_TELEMETRY__OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIToken != "from-env" {
		t.Errorf("APIToken = %q, want %q", cfg.APIToken, "from-env")
	}
	if cfg.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", cfg.MaxAttempts)
	}
	if cfg.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %v, want 20s", cfg.RequestTimeout)
	}
	if cfg.Telemetry == nil || cfg.Telemetry.OTLPEndpoint != "collector:4317" {
		t.Errorf("Telemetry = %+v, want endpoint from env", cfg.Telemetry)
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == "" {
		t.Error("DefaultPath returned empty string")
	}
}

func TestLoad_TelemetryValid(t *testing.T) {
	path := writeConfig(t, `
api_base_url: "http://localhost:8080"
telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true
  service_name: "my-agendasync"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry == nil {
		t.Fatal("expected Telemetry to be non-nil")
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.Telemetry.OTLPEndpoint, "localhost:4317")
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Insecure = false, want true")
	}
	if cfg.Telemetry.ServiceName != "my-agendasync" {
		t.Errorf("ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "my-agendasync")
	}
}

func TestLoad_TelemetryOmitted(t *testing.T) {
	path := writeConfig(t, `
api_base_url: "http://localhost:8080"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry != nil {
		t.Error("expected Telemetry to be nil when block is omitted")
	}
}

func TestLoad_TelemetryMissingEndpoint(t *testing.T) {
	path := writeConfig(t, `
api_base_url: "http://localhost:8080"
telemetry:
  insecure: true
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for telemetry missing otlp_endpoint, got nil")
	}
}

func TestLoad_TelemetryHeaders(t *testing.T) {
	path := writeConfig(t, `
api_base_url: "http://localhost:8080"
telemetry:
  otlp_endpoint: "otelcol.example.com:4317"
  headers:
    Authorization: "Bearer secret"
    x-dataset: "test"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Telemetry.Headers) != 2 {
		t.Fatalf("Headers len = %d, want 2", len(cfg.Telemetry.Headers))
	}
	if cfg.Telemetry.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Authorization header = %q, want %q", cfg.Telemetry.Headers["Authorization"], "Bearer secret")
	}
	if cfg.Telemetry.Headers["x-dataset"] != "test" {
		t.Errorf("x-dataset header = %q, want %q", cfg.Telemetry.Headers["x-dataset"], "test")
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := &Config{
		APIBaseURL:     "http://localhost:8080",
		APIToken:       "tok",
		RequestTimeout: 15 * time.Second,
		MaxAttempts:    2,
		RefreshTimeout: 45 * time.Second,
		DrugLabelURL:   "https://drugs.example.com",
		DBPath:         "/tmp/x.db",
		LogLevel:       "warn",
	}
	if err := want.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *want {
		t.Errorf("Load(Write(cfg)) = %+v, want %+v", got, want)
	}
}
