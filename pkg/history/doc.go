// Package history stores the per-metric measurement time series written at the
// end of every reporting pass.
//
// The history is append-only: each pass appends one Snapshot holding an Entry
// (value, status, timestamp) per metric ID. Snapshots must arrive in
// non-decreasing timestamp order. Readers answer two questions for the
// status engine and the dashboard:
//
//   - StatusStartDate: when did the metric's current status begin? Found by
//     walking backward from the latest entry while the recorded status equals
//     the current one.
//   - RecentValues: the last N values of a metric, for charting.
//
// Backends: Memory (tests, ephemeral runs), File (one JSON object per line,
// compatible with value-only legacy lines) and Postgres (pgx stdlib driver).
// Open(Config) returns the backend selected by Config.Backend.
package history
