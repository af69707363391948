package api

import (
	"github.com/obsidianstack/healthboard/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// Status is the worst status over all live projects' metrics, or
	// "unknown" without data.
	Status       string               `json:"status"`
	ProjectCount int                  `json:"project_count"`
	MetricCount  int                  `json:"metric_count"`
	Counts       map[types.Status]int `json:"counts"`
	AlertCount   int                  `json:"alert_count"`
}

// ProjectSummary is one entry of GET /api/v1/projects.
type ProjectSummary struct {
	Project     string               `json:"project"`
	PassID      string               `json:"pass_id"`
	Status      types.Status         `json:"status"`
	Counts      map[types.Status]int `json:"counts"`
	GeneratedAt string               `json:"generated_at"` // RFC3339
	LastSeen    string               `json:"last_seen"`    // RFC3339
}

// ProjectResponse is the payload for GET /api/v1/projects/{project}.
type ProjectResponse struct {
	ProjectSummary
	Metrics []MetricResponse `json:"metrics"`
}

// MetricResponse is one metric of a project report with its hints.
type MetricResponse struct {
	types.MetricReport
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// HistoryPoint is one recorded measurement.
type HistoryPoint struct {
	Timestamp string       `json:"timestamp,omitempty"` // RFC3339; empty for legacy entries
	Value     *float64     `json:"value"`
	Status    types.Status `json:"status,omitempty"`
}

// HistoryResponse is the payload for the metric history endpoint.
type HistoryResponse struct {
	Project  string         `json:"project"`
	MetricID string         `json:"metric_id"`
	Points   []HistoryPoint `json:"points"`
	YAxisMin float64        `json:"y_axis_min"`
	YAxisMax float64        `json:"y_axis_max"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	Projects    []ProjectResponse `json:"projects"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
