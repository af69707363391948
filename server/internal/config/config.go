package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one condition evaluated against every metric of every
// received report.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "status == red", "value > 10",
	// "age_days > 14", "missing == true".
	Condition string `yaml:"condition"`

	// Kinds restricts the rule to these metric kinds. Empty matches all.
	Kinds []string `yaml:"kinds"`

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

// Default values for the server configuration.
const (
	DefaultHTTPPort  = 8080
	DefaultReportTTL = 3 * time.Hour
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` and `project:` keys in the same file are ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the receiver, REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures how agents authenticate when posting reports.
	Auth AuthConfig `yaml:"auth"`

	// Report controls in-memory report retention.
	Report ReportConfig `yaml:"report"`

	// History, when a backend is set, records every received metric for
	// the chart endpoint.
	History HistoryConfig `yaml:"history"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "X-API-Key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "X-API-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-API-Key"
}

// ReportConfig controls in-memory report retention.
type ReportConfig struct {
	// TTL is how long a project's report remains live after it was received.
	// It should exceed the agents' interval. Default: 3h.
	TTL time.Duration `yaml:"ttl"`
}

// HistoryConfig selects the server's history backend.
type HistoryConfig struct {
	// Backend is one of: file | postgres | memory. Empty disables history.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DSNEnv  string `yaml:"dsn_env"`
	Recent  int    `yaml:"recent"`
}

// DSN returns the postgres connection string resolved from the environment.
func (h HistoryConfig) DSN() string {
	if h.DSNEnv == "" {
		return ""
	}
	return os.Getenv(h.DSNEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults and HEALTHBOARD_SERVER_* environment
// overrides are applied before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Report: ReportConfig{
				TTL: DefaultReportTTL,
			},
		},
	}
}

// validate checks structural constraints and reports every problem found.
func validate(cfg *Config) error {
	var errs error
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort))
	}
	switch s.Auth.Mode {
	case "apikey":
		if s.Auth.KeyEnv == "" {
			errs = multierr.Append(errs, fmt.Errorf("server.auth.key_env is required for mode apikey"))
		}
	case "none", "":
	default:
		errs = multierr.Append(errs, fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode))
	}
	if s.Report.TTL < 0 {
		errs = multierr.Append(errs, fmt.Errorf("server.report.ttl must not be negative"))
	}
	switch s.History.Backend {
	case "", "memory":
	case "file":
		if s.History.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("server.history.path is required for backend file"))
		}
	case "postgres":
		if s.History.DSNEnv == "" {
			errs = multierr.Append(errs, fmt.Errorf("server.history.dsn_env is required for backend postgres"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("server.history.backend %q unknown: want file|postgres|memory", s.History.Backend))
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("server.alerts.rules[%d]: name is required", i))
		}
		if err := ValidateCondition(r.Condition); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("server.alerts.rules[%d] %s: %w", i, r.Name, err))
		}
		switch r.Severity {
		case "", "critical", "warning", "info":
		default:
			errs = multierr.Append(errs, fmt.Errorf("server.alerts.rules[%d] %s: severity %q unknown", i, r.Name, r.Severity))
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			errs = multierr.Append(errs, fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type))
		}
	}
	return errs
}
