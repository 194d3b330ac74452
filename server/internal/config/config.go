package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 5000
	DefaultSourceTimeout  = 30 * time.Second
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
	DefaultSnapshotTTL    = 30 * time.Minute
	DefaultSnapshotKeep   = 50
	DefaultStreamInterval = 5 * time.Second
	DefaultAllowOrigin    = "*"
)

// SourceURLEnv overrides source.url when set.
const SourceURLEnv = "FACULTYLOAD_SOURCE_URL"

// Config is the top-level configuration parsed from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Insights InsightsConfig `yaml:"insights"`
	Refresh  RefreshConfig  `yaml:"refresh"`
}

// ServerConfig holds HTTP-facing settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 5000).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error (default info).
	LogLevel string `yaml:"log_level"`

	// Auth configures how the server authenticates REST clients.
	Auth AuthConfig `yaml:"auth"`

	// CORS controls the Access-Control-Allow-Origin response header.
	CORS CORSConfig `yaml:"cors"`

	// Snapshot controls in-memory snapshot retention.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Stream controls the WebSocket broadcast cadence.
	Stream StreamConfig `yaml:"stream"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the REST API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// CORSConfig controls cross-origin access for the dashboard.
type CORSConfig struct {
	AllowOrigin string `yaml:"allow_origin"`
}

// SnapshotConfig controls in-memory snapshot retention.
type SnapshotConfig struct {
	// TTL is how long a snapshot stays in the store. Default: 30m.
	TTL time.Duration `yaml:"ttl"`

	// Keep caps the number of retained snapshots. Default: 50.
	Keep int `yaml:"keep"`
}

// StreamConfig controls the WebSocket hub.
type StreamConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based condition evaluated per faculty group.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "ratio > 1.5",
	// "faculty_total_workload > 30", "status == Overloaded".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// SourceConfig describes the upstream spreadsheet script endpoint.
type SourceConfig struct {
	// URL is the deployed script URL. The action query parameter is appended.
	URL string `yaml:"url"`

	// Timeout bounds one upstream request. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	Retry RetryConfig      `yaml:"retry"`
	Auth  SourceAuthConfig `yaml:"auth"`
	TLS   TLSConfig        `yaml:"tls"`
}

// RetryConfig controls retries of upstream requests.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// SourceAuthConfig specifies how the server authenticates to the upstream.
type SourceAuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header and KeyEnv are used when Mode == "apikey".
	Header string `yaml:"header"`
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Username and PasswordEnv are used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a SourceAuthConfig) Key() string { return lookupEnv(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a SourceAuthConfig) Token() string { return lookupEnv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a SourceAuthConfig) Password() string { return lookupEnv(a.PasswordEnv) }

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds upstream TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// PipelineConfig controls how the loader treats rows it cannot read.
type PipelineConfig struct {
	// StrictRows makes any rejected row fail the whole batch, which then
	// falls back to the demo dataset. When false, rejected rows are dropped.
	StrictRows bool `yaml:"strict_rows"`
}

// InsightsConfig controls the /api/insights fallback.
type InsightsConfig struct {
	// LocalFallback derives insights from the latest live records when the
	// upstream insights action fails. Default: true.
	LocalFallback *bool `yaml:"local_fallback"`
}

// LocalFallbackEnabled reports whether local insights are enabled.
func (i InsightsConfig) LocalFallbackEnabled() bool {
	return i.LocalFallback == nil || *i.LocalFallback
}

// RefreshConfig controls the background refresh schedule.
type RefreshConfig struct {
	// Schedule is a standard 5-field cron expression. Empty disables refresh.
	Schedule string `yaml:"schedule"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if v := os.Getenv(SourceURLEnv); v != "" {
		cfg.Source.URL = v
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			LogLevel: "info",
			CORS:     CORSConfig{AllowOrigin: DefaultAllowOrigin},
			Snapshot: SnapshotConfig{
				TTL:  DefaultSnapshotTTL,
				Keep: DefaultSnapshotKeep,
			},
			Stream: StreamConfig{Interval: DefaultStreamInterval},
		},
		Source: SourceConfig{
			Timeout: DefaultSourceTimeout,
			Retry: RetryConfig{
				MaxAttempts: DefaultRetryAttempts,
				BaseDelay:   DefaultRetryBaseDelay,
				MaxDelay:    DefaultRetryMaxDelay,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if _, err := ParseLogLevel(cfg.Server.LogLevel); err != nil {
		return err
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Snapshot.TTL < 0 {
		return fmt.Errorf("server.snapshot.ttl must not be negative")
	}
	if cfg.Server.Snapshot.Keep <= 0 {
		return fmt.Errorf("server.snapshot.keep must be positive")
	}
	if cfg.Server.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	for _, r := range cfg.Server.Alerts.Rules {
		if r.Name == "" || len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("server.alerts rule %q: want name and \"field op value\" condition", r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts rule %q: severity %q unknown", r.Name, r.Severity)
		}
	}

	if cfg.Source.URL != "" {
		u, err := url.Parse(cfg.Source.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("source.url %q is not an absolute http(s) URL", cfg.Source.URL)
		}
	}
	if cfg.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if cfg.Source.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("source.retry.max_attempts must be positive")
	}
	switch cfg.Source.Auth.Mode {
	case "apikey":
		if cfg.Source.Auth.Header == "" {
			return fmt.Errorf("source.auth.header is required for apikey mode")
		}
	case "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("source.auth.mode %q unknown: want apikey|bearer|basic|none", cfg.Source.Auth.Mode)
	}

	if s := strings.TrimSpace(cfg.Refresh.Schedule); s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			return fmt.Errorf("refresh.schedule %q: %w", s, err)
		}
	}
	return nil
}

// ParseLogLevel maps a config log level to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s)
	}
}
