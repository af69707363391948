package metric

import (
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// classify applies rules 1-4: missing, technical debt, perfect, thresholds.
func classify(spec Spec, debt *TechnicalDebtTarget, v Value) (status types.Status, missing, inDebt bool) {
	n, ok := v.Float()
	if !ok {
		return types.StatusRed, true, false
	}
	if debt.covers(spec.Direction, n) {
		return types.StatusGrey, false, true
	}
	if n == spec.Perfect {
		return types.StatusPerfect, false, false
	}
	return spec.Direction.Classify(n, spec.Target, spec.LowTarget), false, false
}

// escalate applies rule 5. It returns the escalated status and whether it
// differs from st. A zero bound disables that step.
func escalate(st types.Status, age, oldAge, maxOldAge time.Duration) (types.Status, bool) {
	if types.Severity(st) < 0 {
		return st, false
	}
	out := st
	switch {
	case maxOldAge > 0 && age > maxOldAge:
		out = types.Worst(st, types.StatusRed)
	case oldAge > 0 && age > oldAge:
		out = types.Worst(st, types.StatusYellow)
	}
	return out, out != st
}
