package api

import (
	"fmt"
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// DiagnosticHint is one human-readable insight about a metric. The UI shows
// these as chips on the metric card; Detail is shown on click.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number associated with the hint, e.g. age in days.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a metric report, most severe first.
func computeDiagnostics(m types.MetricReport) []DiagnosticHint {
	if m.Missing {
		return []DiagnosticHint{{
			Key:   "missing",
			Level: "critical",
			Title: "No measurement",
			Detail: "The agent could not obtain a value for this metric, so it is reported red. " +
				"Check that the source is reachable and still publishes " + m.ID + ".",
		}}
	}

	var hints []DiagnosticHint
	if m.Escalated {
		days := m.AgeSeconds / (24 * time.Hour).Seconds()
		hints = append(hints, DiagnosticHint{
			Key:   "stale",
			Level: "warning",
			Title: fmt.Sprintf("Unchanged for %.0f days", days),
			Detail: "The status has not changed for too long, so it is shown as " + string(m.Status) +
				". Update the measurement to reset its age. " + m.Norm,
			Value: &days,
		})
	}

	switch m.Status {
	case types.StatusRed:
		if !m.Escalated {
			hints = append(hints, DiagnosticHint{
				Key: "red", Level: "critical", Title: "Below the norm",
				Detail: m.Text + " " + m.Norm,
			})
		}
	case types.StatusYellow:
		if !m.Escalated {
			hints = append(hints, DiagnosticHint{
				Key: "yellow", Level: "warning", Title: "Near the norm",
				Detail: m.Text + " " + m.Norm,
			})
		}
	case types.StatusGrey:
		hints = append(hints, DiagnosticHint{
			Key: "technical_debt", Level: "info", Title: "Accepted technical debt",
			Detail: m.Comment,
		})
	default:
		hints = append(hints, DiagnosticHint{
			Key: "ok", Level: "ok", Title: "Meets the norm",
			Detail: m.Text,
		})
	}
	return hints
}
