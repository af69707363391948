package metric

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
)

const (
	defaultTemplate        = "{value}{unit}"
	defaultMissingTemplate = "The {name} of {subject} could not be measured because the source is unavailable."
	lowerNormTemplate      = "At most {target}{unit}. More than {low_target}{unit} is red."
	higherNormTemplate     = "At least {target}{unit}. Less than {low_target}{unit} is red."
	staleNormTemplate      = " When the measurement is older than {old_age} the status is yellow, older than {max_old_age} is red."
)

// Report renders the report text for the pass: the missing template when
// there is no data, the perfect template when the status is perfect and one
// is configured, the regular template otherwise.
func (m *Metric) Report(ctx context.Context, c *Cache) string {
	ev := m.Evaluate(ctx, c)
	tmpl := m.spec.Template
	switch {
	case ev.Missing:
		tmpl = m.spec.MissingTemplate
		if tmpl == "" {
			tmpl = defaultMissingTemplate
		}
	case ev.Base == types.StatusPerfect && m.spec.PerfectTemplate != "":
		tmpl = m.spec.PerfectTemplate
	}
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	return m.render(tmpl, m.measure(ctx, c))
}

// Norm describes the thresholds, including the staleness bounds when set.
func (m *Metric) Norm() string {
	tmpl := m.spec.NormTemplate
	if tmpl == "" {
		tmpl = higherNormTemplate
		if _, lower := m.spec.Direction.(lowerIsBetter); lower {
			tmpl = lowerNormTemplate
		}
		if m.spec.OldAge > 0 && m.spec.MaxOldAge > 0 {
			tmpl += staleNormTemplate
		}
	}
	return m.render(tmpl, measured{})
}

// Comment carries the technical-debt explanation, empty without debt.
func (m *Metric) Comment() string {
	if m.debt == nil {
		return ""
	}
	text := "The currently accepted technical debt is " + m.format(m.debt.AcceptedValue) + "."
	if m.debt.Explanation != "" {
		text += " " + m.debt.Explanation
	}
	return text
}

func (m *Metric) render(tmpl string, res measured) string {
	value := ""
	if n, ok := res.value.Float(); ok {
		value = m.format(n)
	}
	unit := m.spec.Unit
	if unit != "" && unit != "%" {
		unit = " " + unit
	}
	if m.spec.Unit == UnitVersion {
		unit = ""
	}
	r := strings.NewReplacer(
		"{value}", value,
		"{target}", m.format(m.spec.Target),
		"{low_target}", m.format(m.spec.LowTarget),
		"{unit}", unit,
		"{numerator}", strconv.Itoa(res.numerator),
		"{denominator}", strconv.Itoa(res.denominator),
		"{subject}", m.subjectName(),
		"{name}", strings.ToLower(m.spec.Name),
		"{old_age}", formatAge(m.spec.OldAge),
		"{max_old_age}", formatAge(m.spec.MaxOldAge),
	)
	return r.Replace(tmpl)
}

func (m *Metric) subjectName() string {
	if m.subject.Name != "" {
		return m.subject.Name
	}
	return m.subject.ID
}

func (m *Metric) format(n float64) string {
	if m.spec.Unit == UnitVersion {
		return FormatVersion(n)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// formatAge renders whole days, or the duration itself below one day.
func formatAge(d time.Duration) string {
	if d >= 24*time.Hour {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}

// FormatVersion renders a numerical version a*1e6+b*1e3+c as "a.b.c".
func FormatVersion(n float64) string {
	v := int64(n)
	return fmt.Sprintf("%d.%d.%d", v/1_000_000, v/1_000%1_000, v%1_000)
}
