// Package config loads and watches the agent configuration file.
//
// Top-level types:
//   - Config{Agent, Project}: full config tree parsed from YAML
//   - AgentConfig: server_endpoint, interval, parallelism, buffer_size,
//     telemetry_port, server_auth, history
//   - ProjectConfig: name, sources [], metrics [], meta []
//   - Source: id, type (prometheus|file), endpoint or path, auth, tls
//   - MetricConfig: kind, subject, source + source_id (+ denominator_source_id
//     for percentage kinds), optional target/low_target overrides and an
//     optional technical_debt {accepted_value, explanation}
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from the environment variables named in
//     the file
//
// Load(path) reads the YAML file, applies defaults (1h interval, parallelism
// 4, file history with a 250 entry window), applies HEALTHBOARD_* environment
// overrides and validates, reporting every problem at once.
//
// Metric kinds and meta kinds are checked when the report runner is built,
// not here, so the catalogue stays in one place.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config.
package config
