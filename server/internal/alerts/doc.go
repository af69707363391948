// Package alerts evaluates per-metric rules against every received report
// and delivers webhook notifications to Teams, Slack or generic HTTP targets
// when a rule fires or resolves.
package alerts
