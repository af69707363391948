package metric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/obsidianstack/healthboard/agent/internal/source"
	"github.com/obsidianstack/healthboard/pkg/history"
	"github.com/obsidianstack/healthboard/pkg/types"
)

// Subject is the measured entity: a product, team or project.
type Subject struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Options wires a metric to its collaborators.
type Options struct {
	// ID overrides the stable "<kind>-<subject id>" identifier.
	ID      string
	Subject Subject
	Debt    *TechnicalDebtTarget

	// Exactly one of Source or Ratio supplies the value.
	Source   source.Source
	SourceID string
	Ratio    Ratio

	// History is optional; without it status age is always zero and the
	// chart range falls back to (0, 100).
	History history.Reader
}

// Evaluation is the outcome of evaluating one metric in a pass.
type Evaluation struct {
	Value     Value
	Numerical float64
	// Status is the reported status, after staleness escalation.
	Status types.Status
	// Base is the status derived from the value alone (rules 1-4). It is the
	// status recorded in history so escalation does not reset its own streak.
	Base      types.Status
	Missing   bool
	Debt      bool
	Age       time.Duration
	Escalated bool
}

// Metric evaluates one measured quantity of one subject.
type Metric struct {
	id      string
	spec    Spec
	subject Subject
	debt    *TechnicalDebtTarget

	src   source.Source
	srcID string
	ratio Ratio

	meta     bool
	members  []*Metric
	matching map[types.Status]bool

	history history.Reader
}

// StableID returns the default identifier of a metric of kind for subject.
func StableID(kind string, subject Subject) string {
	if subject.ID == "" {
		return kind
	}
	return kind + "-" + subject.ID
}

// New builds a metric from spec and opts. It returns ErrNoValueSource when
// neither a Source nor a Ratio is given and ErrThresholdOrder when the
// targets contradict the direction.
func New(spec Spec, opts Options) (*Metric, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if (opts.Source == nil && opts.Ratio == nil) || (spec.Percentage && opts.Ratio == nil) {
		return nil, fmt.Errorf("%w: %s", ErrNoValueSource, StableID(spec.Kind, opts.Subject))
	}
	if opts.Ratio != nil && !spec.hasFixedYAxis() {
		spec.YAxis = [2]float64{0, 100}
	}
	id := opts.ID
	if id == "" {
		id = StableID(spec.Kind, opts.Subject)
	}
	m := &Metric{
		id:      id,
		spec:    spec,
		subject: opts.Subject,
		debt:    opts.Debt,
		src:     opts.Source,
		srcID:   opts.SourceID,
		ratio:   opts.Ratio,
		history: opts.History,
	}
	if m.ratio != nil {
		m.src = nil
	}
	return m, nil
}

// ID returns the history key of the metric.
func (m *Metric) ID() string { return m.id }

// Spec returns the metric's configuration.
func (m *Metric) Spec() Spec { return m.spec }

// Subject returns the measured entity.
func (m *Metric) Subject() Subject { return m.subject }

// Debt returns the attached technical-debt target, if any.
func (m *Metric) Debt() *TechnicalDebtTarget { return m.debt }

// IsMeta reports whether m aggregates other metrics.
func (m *Metric) IsMeta() bool { return m.meta }

// Members returns the metrics aggregated by a meta-metric.
func (m *Metric) Members() []*Metric { return m.members }

// Value returns the metric's value for the pass, asking the collaborators at
// most once per Cache.
func (m *Metric) Value(ctx context.Context, c *Cache) Value {
	return m.measure(ctx, c).value
}

// NumericalValue returns the number charted for the metric: the unrounded
// ratio for percentages, the value itself otherwise, 0 when missing.
func (m *Metric) NumericalValue(ctx context.Context, c *Cache) float64 {
	return m.measure(ctx, c).numerical
}

// Status returns the reported status for the pass.
func (m *Metric) Status(ctx context.Context, c *Cache) types.Status {
	return m.Evaluate(ctx, c).Status
}

// Evaluate applies the status rules. It is memoized per Cache, so repeated
// calls within a pass return the same result without touching collaborators.
func (m *Metric) Evaluate(ctx context.Context, c *Cache) Evaluation {
	cell := c.evalCell(m.id)
	cell.once.Do(func() {
		cell.eval = m.evaluate(ctx, c)
	})
	return cell.eval
}

func (m *Metric) evaluate(ctx context.Context, c *Cache) Evaluation {
	res := m.measure(ctx, c)
	base, missing, inDebt := classify(m.spec, m.debt, res.value)
	ev := Evaluation{
		Value:     res.value,
		Numerical: res.numerical,
		Status:    base,
		Base:      base,
		Missing:   missing,
		Debt:      inDebt,
	}
	if missing || inDebt {
		return ev
	}
	ev.Age = c.now.Sub(m.statusStart(ctx, c, base))
	if ev.Age < 0 {
		ev.Age = 0
	}
	ev.Status, ev.Escalated = escalate(base, ev.Age, m.spec.OldAge, m.spec.MaxOldAge)
	return ev
}

// statusStart returns the anchor the status age is measured from: the
// measurement's own date when the source knows it, otherwise the start of
// the current status streak in history.
func (m *Metric) statusStart(ctx context.Context, c *Cache, current types.Status) time.Time {
	if d, ok := m.src.(source.Dater); ok {
		ts, err := d.MeasuredAt(ctx, m.srcID)
		if err == nil {
			return ts
		}
		if !errors.Is(err, source.ErrNoData) {
			c.fail(m.id, err)
		}
	}
	if m.history == nil {
		return c.now
	}
	ts, err := m.history.StatusStartDate(ctx, m.id, current, c.now)
	if err != nil {
		c.fail(m.id, fmt.Errorf("status start date: %w", err))
		return c.now
	}
	return ts
}

func (m *Metric) measure(ctx context.Context, c *Cache) measured {
	cell := c.valueCell(m.id)
	cell.once.Do(func() {
		switch {
		case m.meta:
			cell.res = m.aggregate(ctx, c)
		case m.ratio != nil:
			cell.res = m.ratioValue(ctx, c)
		default:
			cell.res = m.sourceValue(ctx, c)
		}
	})
	return cell.res
}

func (m *Metric) sourceValue(ctx context.Context, c *Cache) measured {
	n, err := m.src.Measure(ctx, m.srcID)
	if err != nil {
		c.fail(m.id, err)
		return measured{value: Missing}
	}
	return measured{value: Of(n), numerical: n}
}

// YAxisRange returns the chart range: fixed for percentages and kinds that
// declare one, otherwise (0, max of recent history) or (0, 100) when the
// history is empty or its maximum is not positive.
func (m *Metric) YAxisRange(ctx context.Context) (float64, float64) {
	if m.spec.hasFixedYAxis() {
		return m.spec.YAxis[0], m.spec.YAxis[1]
	}
	if m.history == nil {
		return 0, 100
	}
	vals, err := m.history.RecentValues(ctx, m.id, 0)
	if err != nil || len(vals) == 0 {
		return 0, 100
	}
	if mx := lo.Max(vals); mx > 0 {
		return 0, mx
	}
	return 0, 100
}

// URL returns the page the measurement came from, when the source knows it.
func (m *Metric) URL() string {
	if l, ok := m.src.(source.Linker); ok {
		return l.URL(m.srcID)
	}
	if l, ok := m.ratio.(source.Linker); ok {
		return l.URL(m.srcID)
	}
	return ""
}
