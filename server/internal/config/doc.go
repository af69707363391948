// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the agent's keys are ignored by the server binary).
//
// Config fields:
//   - HTTPPort        : port for the receiver, REST API and WebSocket hub (default 8080)
//   - Auth.Mode       : "apikey" or "none"
//   - Auth.KeyEnv     : environment variable holding the expected API key
//   - Auth.Header     : HTTP header name (default "X-API-Key")
//   - Report.TTL      : how long a project report remains live (default 3h)
//   - History.Backend : optional file | postgres | memory history for charts
//   - Alerts          : per-metric rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then HEALTHBOARD_SERVER_*
// environment overrides, then validates.
package config
