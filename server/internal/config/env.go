package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// overrides are the environment variables that take precedence over the
// config file, e.g. in containers.
type overrides struct {
	HTTPPort       int           `env:"HTTP_PORT"`
	ReportTTL      time.Duration `env:"REPORT_TTL"`
	AuthMode       string        `env:"AUTH_MODE"`
	HistoryBackend string        `env:"HISTORY_BACKEND"`
	HistoryPath    string        `env:"HISTORY_PATH"`
}

func applyEnv(cfg *Config) error {
	var o overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: "HEALTHBOARD_SERVER_"}); err != nil {
		return err
	}
	s := &cfg.Server
	if o.HTTPPort != 0 {
		s.HTTPPort = o.HTTPPort
	}
	if o.ReportTTL != 0 {
		s.Report.TTL = o.ReportTTL
	}
	if o.AuthMode != "" {
		s.Auth.Mode = o.AuthMode
	}
	if o.HistoryBackend != "" {
		s.History.Backend = o.HistoryBackend
	}
	if o.HistoryPath != "" {
		s.History.Path = o.HistoryPath
	}
	return nil
}
