// Package metric implements the status-determination engine: it turns a
// measured value, an optional accepted technical-debt target and the age of
// the current status into one categorical status.
//
// # Status rules
//
// Evaluate applies the following rules in order; the first match wins:
//
//  1. Missing value: red, flagged Missing so the report text can say "no data".
//  2. Technical debt: grey when a debt target is attached and the value is not
//     worse than the accepted value (direction-aware). Never overrides rule 1.
//  3. Perfect: the value equals Spec.Perfect exactly.
//  4. Thresholds: green, yellow or red by Spec.Direction.
//  5. Staleness: when the status is older than Spec.MaxOldAge it becomes at
//     least red, older than Spec.OldAge at least yellow. Escalation never
//     downgrades and never touches grey or missing.
//
// The age in rule 5 is measured from the source's own measurement date when
// the source implements source.Dater, otherwise from the history's status
// start date for the rule 3/4 status.
//
// # Variants
//
// Metric variants are composed rather than derived:
//
//   - a Direction strategy (LowerIsBetter, HigherIsBetter),
//   - a value source: a source.Source for direct measurements or a Ratio for
//     percentage metrics (value = round-half-up(100·num/den)),
//   - for meta-metrics (NewMeta), a member set and the statuses that count
//     toward the numerator.
//
// # Passes
//
// A Cache scopes one reporting pass: it fixes "now", memoizes values and
// evaluations so Status is idempotent within the pass, and collects the
// collaborator errors that degraded values to missing. A Cache is safe for
// concurrent use; leaf metrics may be evaluated in parallel, meta-metrics
// must be evaluated after their members.
package metric
