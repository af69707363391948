package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HEALTHBOARD_"

// overrides are the settings that may be replaced from the environment,
// typically by a container orchestrator.
type overrides struct {
	ServerEndpoint string        `env:"SERVER_ENDPOINT"`
	Interval       time.Duration `env:"INTERVAL"`
	Parallelism    int           `env:"PARALLELISM"`
	TelemetryPort  int           `env:"TELEMETRY_PORT"`
	HistoryBackend string        `env:"HISTORY_BACKEND"`
	HistoryPath    string        `env:"HISTORY_PATH"`
	ProjectName    string        `env:"PROJECT"`
}

// applyEnv copies every set HEALTHBOARD_* variable over the parsed file.
func applyEnv(cfg *Config) error {
	var o overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return err
	}
	if o.ServerEndpoint != "" {
		cfg.Agent.ServerEndpoint = o.ServerEndpoint
	}
	if o.Interval != 0 {
		cfg.Agent.Interval = o.Interval
	}
	if o.Parallelism != 0 {
		cfg.Agent.Parallelism = o.Parallelism
	}
	if o.TelemetryPort != 0 {
		cfg.Agent.TelemetryPort = o.TelemetryPort
	}
	if o.HistoryBackend != "" {
		cfg.Agent.History.Backend = o.HistoryBackend
	}
	if o.HistoryPath != "" {
		cfg.Agent.History.Path = o.HistoryPath
	}
	if o.ProjectName != "" {
		cfg.Project.Name = o.ProjectName
	}
	return nil
}
