// Package api implements the HTTP REST API for healthboard-server.
//
// New(store, opts...) returns a Handler whose chi router serves:
//
//	GET  /api/v1/health                                    overall status, per-status counts
//	GET  /api/v1/projects                                  live projects ([]ProjectSummary)
//	GET  /api/v1/projects/{project}                        one project with all metrics
//	GET  /api/v1/projects/{project}/metrics/{metric}       one metric with diagnostic hints
//	GET  /api/v1/projects/{project}/metrics/{metric}/history  recent values and y-axis range
//	GET  /api/v1/alerts                                    active and recently resolved alerts
//	GET  /api/v1/snapshot                                  all live projects + generated_at
//	POST /api/v1/reports                                   agent reports (WithReceiver)
//
// All endpoints respond with Content-Type: application/json and read live
// entries from the store; projects past the TTL are not found.
package api
