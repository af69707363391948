package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval       = time.Hour
	DefaultParallelism    = 4
	DefaultBufferSize     = 100
	DefaultHistoryBackend = "file"
	DefaultHistoryPath    = "history.jsonl"
	DefaultHistoryRecent  = 250
)

// Config is the agent configuration: how the agent runs and what it measures.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Project ProjectConfig `yaml:"project"`
}

// AgentConfig holds the runtime settings of the agent process.
type AgentConfig struct {
	// ServerEndpoint is the base URL of healthboard-server. Empty disables
	// shipping; reports are then only logged and printed.
	ServerEndpoint string `yaml:"server_endpoint"`

	// Interval is the time between reporting passes.
	Interval time.Duration `yaml:"interval"`

	// Parallelism bounds the number of metrics measured concurrently.
	Parallelism int `yaml:"parallelism"`

	// BufferSize is the number of reports held while the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// TelemetryPort serves the agent's own Prometheus metrics. 0 disables it.
	TelemetryPort int `yaml:"telemetry_port"`

	// ServerAuth configures how the agent authenticates to the server.
	ServerAuth AuthConfig `yaml:"server_auth"`

	// History selects where measurement history is kept.
	History HistoryConfig `yaml:"history"`
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	// Backend is one of: file | postgres | memory.
	Backend string `yaml:"backend"`

	// Path is the history file for the file backend.
	Path string `yaml:"path"`

	// DSNEnv names the environment variable holding the postgres DSN.
	DSNEnv string `yaml:"dsn_env"`

	// Recent is the number of entries per metric used for charts.
	Recent int `yaml:"recent"`
}

// DSN returns the postgres connection string resolved from the environment.
func (h HistoryConfig) DSN() string {
	if h.DSNEnv == "" {
		return ""
	}
	return os.Getenv(h.DSNEnv)
}

// ProjectConfig describes the measured project.
type ProjectConfig struct {
	// Name identifies the project on the server.
	Name string `yaml:"name"`

	// Sources are the collaborators that deliver raw numbers.
	Sources []Source `yaml:"sources"`

	// Metrics are the leaf metrics evaluated every pass.
	Metrics []MetricConfig `yaml:"metrics"`

	// Meta lists the meta-metric kinds aggregated over all leaf metrics.
	Meta []string `yaml:"meta"`
}

// Source describes one data source.
type Source struct {
	// ID is referenced by MetricConfig.Source.
	ID string `yaml:"id"`

	// Type is one of: prometheus | file | certificate.
	Type string `yaml:"type"`

	// Endpoint is the URL of a Prometheus exposition, or of a measurements
	// document for the file type.
	Endpoint string `yaml:"endpoint"`

	// Path is a local measurements document for the file type.
	Path string `yaml:"path"`

	// Timeout bounds one request to the source. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a source or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username string `yaml:"username"`
	// PasswordEnv names the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string { return getenv(a.KeyEnv) }

// Token returns the bearer token resolved from the environment.
func (a AuthConfig) Token() string { return getenv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return getenv(a.PasswordEnv) }

// EffectiveHeader returns the API key header, "X-API-Key" by default.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-API-Key"
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// MetricConfig instantiates one metric kind for one subject.
type MetricConfig struct {
	// ID overrides the default "<kind>-<subject id>" history key.
	ID string `yaml:"id"`

	// Kind is a metric kind from the catalogue, e.g. failing_unittests.
	Kind string `yaml:"kind"`

	Subject SubjectConfig `yaml:"subject"`

	// Source is the ID of the Source delivering the value.
	Source string `yaml:"source"`
	// SourceID is the measurement ID within the source. For percentage kinds
	// it is the numerator.
	SourceID string `yaml:"source_id"`
	// DenominatorSourceID is the denominator of percentage kinds.
	DenominatorSourceID string `yaml:"denominator_source_id"`

	// Target and LowTarget override the kind's thresholds.
	Target    *float64 `yaml:"target"`
	LowTarget *float64 `yaml:"low_target"`

	TechnicalDebt *DebtConfig `yaml:"technical_debt"`
}

// SubjectConfig identifies the measured entity.
type SubjectConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DebtConfig is an accepted technical-debt target.
type DebtConfig struct {
	AcceptedValue float64 `yaml:"accepted_value"`
	Explanation   string  `yaml:"explanation"`
}

// Load reads and parses the YAML config file at path, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Interval:    DefaultInterval,
			Parallelism: DefaultParallelism,
			BufferSize:  DefaultBufferSize,
			History: HistoryConfig{
				Backend: DefaultHistoryBackend,
				Path:    DefaultHistoryPath,
				Recent:  DefaultHistoryRecent,
			},
		},
	}
}

// validate checks required fields and enums, reporting every problem found.
func validate(cfg *Config) error {
	var errs error
	a := cfg.Agent
	if a.Interval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("agent.interval must be positive"))
	}
	if a.Parallelism <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("agent.parallelism must be positive"))
	}
	if a.BufferSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("agent.buffer_size must be positive"))
	}
	if a.TelemetryPort < 0 || a.TelemetryPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("agent.telemetry_port %d out of range", a.TelemetryPort))
	}
	errs = multierr.Append(errs, validateAuth("agent.server_auth", a.ServerAuth))
	switch a.History.Backend {
	case "file":
		if a.History.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("agent.history.path is required for the file backend"))
		}
	case "postgres":
		if a.History.DSNEnv == "" {
			errs = multierr.Append(errs, fmt.Errorf("agent.history.dsn_env is required for the postgres backend"))
		}
	case "memory":
	default:
		errs = multierr.Append(errs, fmt.Errorf("agent.history.backend: unknown backend %q", a.History.Backend))
	}

	p := cfg.Project
	if p.Name == "" {
		errs = multierr.Append(errs, fmt.Errorf("project.name is required"))
	}
	sources := make(map[string]bool, len(p.Sources))
	for i, src := range p.Sources {
		if src.ID == "" {
			errs = multierr.Append(errs, fmt.Errorf("sources[%d]: id is required", i))
			continue
		}
		if sources[src.ID] {
			errs = multierr.Append(errs, fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID))
		}
		sources[src.ID] = true
		switch src.Type {
		case "prometheus":
			if src.Endpoint == "" {
				errs = multierr.Append(errs, fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID))
			}
		case "file":
			if src.Endpoint == "" && src.Path == "" {
				errs = multierr.Append(errs, fmt.Errorf("sources[%d] %q: path or endpoint is required", i, src.ID))
			}
		case "certificate":
			// The endpoint may be left empty when every metric names its host.
		default:
			errs = multierr.Append(errs, fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type))
		}
		errs = multierr.Append(errs, validateAuth(fmt.Sprintf("sources[%d] %q", i, src.ID), src.Auth))
	}
	for i, m := range p.Metrics {
		if m.Kind == "" {
			errs = multierr.Append(errs, fmt.Errorf("metrics[%d]: kind is required", i))
		}
		if m.Source == "" {
			errs = multierr.Append(errs, fmt.Errorf("metrics[%d] %s: source is required", i, m.Kind))
		} else if !sources[m.Source] {
			errs = multierr.Append(errs, fmt.Errorf("metrics[%d] %s: unknown source %q", i, m.Kind, m.Source))
		}
	}
	return errs
}

func validateAuth(where string, a AuthConfig) error {
	switch a.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
		return nil
	default:
		return fmt.Errorf("%s: unknown auth mode %q", where, a.Mode)
	}
}
