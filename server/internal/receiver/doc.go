// Package receiver implements POST /api/v1/reports, the endpoint
// healthboard-agent instances deliver their reports to.
//
// A report is rejected with 400 when it has no project, no generation time,
// or carries a metric without ID or with an unknown status. Accepted reports
// are stored, recorded in the optional history, evaluated by the alert
// engine and passed to the registered listeners (the WebSocket hub).
// Authentication is enforced upstream by the auth middleware.
package receiver
