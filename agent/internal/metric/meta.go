package metric

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// NewMeta builds a meta-metric whose value is the percentage of members with
// a status in matching. Members are evaluated through the same Cache, so they
// must be evaluated (or evaluable) before the meta-metric in a pass.
func NewMeta(spec Spec, subject Subject, members []*Metric, matching ...types.Status) (*Metric, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(matching) == 0 {
		return nil, errors.New("metric: meta-metric needs at least one matching status")
	}
	for _, mm := range members {
		if mm.IsMeta() {
			return nil, fmt.Errorf("%w: %s aggregates %s", ErrNestedMeta, StableID(spec.Kind, subject), mm.ID())
		}
	}
	if !spec.hasFixedYAxis() {
		spec.YAxis = [2]float64{0, 100}
	}
	return &Metric{
		id:       StableID(spec.Kind, subject),
		spec:     spec,
		subject:  subject,
		meta:     true,
		members:  slices.Clone(members),
		matching: lo.SliceToMap(matching, func(s types.Status) (types.Status, bool) { return s, true }),
	}, nil
}

// Matching returns the statuses counted by a meta-metric.
func (m *Metric) Matching() []types.Status {
	return lo.Filter(types.AllStatuses, func(s types.Status, _ int) bool { return m.matching[s] })
}

// aggregate reads every member status once; missing members count as red.
func (m *Metric) aggregate(ctx context.Context, c *Cache) measured {
	statuses := lo.Map(m.members, func(mm *Metric, _ int) types.Status {
		return mm.Evaluate(ctx, c).Status
	})
	num := lo.CountBy(statuses, func(s types.Status) bool { return m.matching[s] })
	return percentage(m.spec, num, len(statuses))
}
