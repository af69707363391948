package report

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/obsidianstack/healthboard/agent/internal/config"
	"github.com/obsidianstack/healthboard/agent/internal/metric"
	"github.com/obsidianstack/healthboard/agent/internal/source"
	"github.com/obsidianstack/healthboard/pkg/history"
)

// Build creates a Runner for cfg.Project. sources maps source IDs to adapters
// (see source.NewSet); h receives one snapshot per pass.
func Build(cfg *config.Config, sources map[string]source.Source, h history.Store, opts ...Option) (*Runner, error) {
	var (
		errs   error
		leaves []*metric.Metric
	)
	for i, mc := range cfg.Project.Metrics {
		m, err := buildMetric(mc, sources, h)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("metrics[%d] %s: %w", i, mc.Kind, err))
			continue
		}
		leaves = append(leaves, m)
	}

	projectSubject := metric.Subject{Name: cfg.Project.Name}
	var metas []*metric.Metric
	for _, kind := range lo.Uniq(cfg.Project.Meta) {
		mk, ok := metric.LookupMeta(kind)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("meta: unknown kind %q", kind))
			continue
		}
		m, err := metric.NewMeta(mk.Spec, projectSubject, leaves, mk.Matching...)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("meta %s: %w", kind, err))
			continue
		}
		metas = append(metas, m)
	}

	all := append(append([]*metric.Metric{}, leaves...), metas...)
	for _, id := range lo.FindDuplicates(lo.Map(all, func(m *metric.Metric, _ int) string { return m.ID() })) {
		errs = multierr.Append(errs, fmt.Errorf("duplicate metric id %q; set an explicit id", id))
	}
	if errs != nil {
		return nil, fmt.Errorf("report: %w", errs)
	}

	r := &Runner{
		project:     cfg.Project.Name,
		leaves:      leaves,
		metas:       metas,
		history:     h,
		parallelism: cfg.Agent.Parallelism,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func buildMetric(mc config.MetricConfig, sources map[string]source.Source, h history.Store) (*metric.Metric, error) {
	spec, ok := metric.Lookup(mc.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", mc.Kind)
	}
	spec = spec.WithTargets(mc.Target, mc.LowTarget)

	src, ok := sources[mc.Source]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", mc.Source)
	}
	if mc.SourceID == "" {
		return nil, fmt.Errorf("source_id is required")
	}

	opts := metric.Options{
		ID:      mc.ID,
		Subject: metric.Subject{ID: mc.Subject.ID, Name: mc.Subject.Name},
		History: h,
	}
	if mc.TechnicalDebt != nil {
		opts.Debt = &metric.TechnicalDebtTarget{
			AcceptedValue: mc.TechnicalDebt.AcceptedValue,
			Explanation:   mc.TechnicalDebt.Explanation,
		}
	}
	if spec.Percentage {
		if mc.DenominatorSourceID == "" {
			return nil, fmt.Errorf("denominator_source_id is required for percentage kinds")
		}
		opts.Ratio = metric.SourceRatio{Source: src, NumeratorID: mc.SourceID, DenominatorID: mc.DenominatorSourceID}
	} else {
		opts.Source = src
		opts.SourceID = mc.SourceID
	}
	return metric.New(spec, opts)
}
