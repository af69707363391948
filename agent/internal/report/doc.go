// Package report runs reporting passes.
//
// A Runner is built from the project configuration (Build) and owns the leaf
// metrics, the meta-metrics aggregated over them and the history store. One
// call to Run is one pass:
//
//  1. every leaf metric is evaluated, concurrently up to the configured
//     parallelism, through a fresh metric.Cache fixed at the pass time;
//  2. the meta-metrics are evaluated, reading the member statuses from the
//     same cache;
//  3. collaborator failures collected by the cache are logged;
//  4. the report (status, value, texts, chart range per metric) is assembled
//     while the history still holds the previous passes;
//  5. a single snapshot with every metric's value and value-derived status is
//     appended to the history.
//
// Observers (see telemetry) are notified after each pass.
package report
