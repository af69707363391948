// Package source holds the collaborators that deliver raw numbers to metrics.
//
// A Source answers Measure(ctx, id) with a number, source.ErrNoData when it
// has nothing for id, or any other error when it could not be reached. The
// metric engine turns both errors into a missing value; only the orchestrator
// logs them.
//
// Adapters, selected by config.Source.Type through New:
//
//   - prometheus: scrapes a Prometheus text exposition (CI exporters, code
//     analysis exporters). The measurement ID is a selector such as
//     `failing_tests{product="abc"}`; matching series are summed.
//   - file: reads a YAML (or JSON) measurements document from disk or over
//     HTTP. Values may be numbers, team-spirit smileys (:-) :-| :-() or
//     version strings (a.b.c). Entries may carry the date they were measured
//     (Dater) and a link to their origin (Linker).
//   - certificate: dials an HTTPS endpoint and measures the days left until
//     its leaf certificate expires. The measurement ID, when set, is the host
//     to check instead of the endpoint.
//
// The prometheus and file adapters cache the fetched document for a short time so that the many
// metrics of one pass share a single request per source.
package source
