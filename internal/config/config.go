// Package config loads and validates the agendasync YAML configuration.
//
// Values come from the YAML file first and are then overridden by
// AGENDASYNC_* environment variables: AGENDASYNC_API_TOKEN sets api_token,
// and a double underscore descends into a block, so
// AGENDASYNC_TELEMETRY__OTLP_ENDPOINT sets telemetry.otlp_endpoint.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/njoerd114/agendasync/internal/state"
)

// EnvPrefix is the prefix of environment variables that override the file.
const EnvPrefix = "AGENDASYNC_"

const (
	defaultRequestTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultRefreshTimeout = 30 * time.Second
	defaultLogLevel       = "info"
	defaultDrugLabelURL   = "https://api.fda.gov"
)

// Config holds the full application configuration.
type Config struct {
	// APIBaseURL is the root of the booking API (e.g. "http://localhost:8080").
	APIBaseURL string `yaml:"api_base_url" validate:"required"`

	// APIToken is sent as a bearer token when set.
	APIToken string `yaml:"api_token,omitempty"`

	// RequestTimeout bounds one HTTP attempt. 1s to 2m, default 10s.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// MaxAttempts is how often idempotent requests are tried when the API is
	// unreachable. 1 to 10, default 3.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// RefreshTimeout bounds one background refresh. 1s to 5m, default 30s.
	RefreshTimeout time.Duration `yaml:"refresh_timeout,omitempty"`

	// DrugLabelURL is the root of the public drug label API searched by the
	// medications command. Default https://api.fda.gov.
	DrugLabelURL string `yaml:"drug_label_url,omitempty"`

	// DBPath is the local cache database. Defaults to
	// ~/.local/share/agendasync/cache.db.
	DBPath string `yaml:"db_path,omitempty"`

	// LogLevel is one of debug, info, warn, error. Default info.
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required,hostname_port"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure,omitempty"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "agendasync".
	ServiceName string `yaml:"service_name,omitempty"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/agendasync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "agendasync", "config.yaml"), nil
}

// Load reads the configuration file at path, applies environment overrides,
// fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}

	// Strict pass: reject unknown keys to catch typos early.
	var strict Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&strict); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps AGENDASYNC_TELEMETRY__OTLP_ENDPOINT to telemetry.otlp_endpoint.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(k, "__", "."), v
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validate fills defaults and checks that every field is well-formed.
func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if err := checkHTTPURL("api_base_url", c.APIBaseURL); err != nil {
		return err
	}

	if c.DrugLabelURL == "" {
		c.DrugLabelURL = defaultDrugLabelURL
	}
	if err := checkHTTPURL("drug_label_url", c.DrugLabelURL); err != nil {
		return err
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RequestTimeout < time.Second || c.RequestTimeout > 2*time.Minute {
		return fmt.Errorf("request_timeout %v is out of range (1s to 2m)", c.RequestTimeout)
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return fmt.Errorf("max_attempts %d is out of range (1 to 10)", c.MaxAttempts)
	}

	if c.RefreshTimeout == 0 {
		c.RefreshTimeout = defaultRefreshTimeout
	}
	if c.RefreshTimeout < time.Second || c.RefreshTimeout > 5*time.Minute {
		return fmt.Errorf("refresh_timeout %v is out of range (1s to 5m)", c.RefreshTimeout)
	}

	if c.DBPath == "" {
		p, err := state.DefaultDBPath()
		if err != nil {
			return err
		}
		c.DBPath = p
	}

	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	if c.Telemetry != nil && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
	}

	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

func checkHTTPURL(key, raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be a valid http or https URL", key, raw)
	}
	return nil
}

// Level returns LogLevel as a slog level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Write saves the configuration as YAML at path, creating parent
// directories. The file is readable by the owner only since it may contain
// the API token.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}
