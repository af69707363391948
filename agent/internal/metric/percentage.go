package metric

import (
	"context"
	"fmt"
	"math"

	"github.com/obsidianstack/healthboard/agent/internal/source"
)

// Ratio supplies the numerator and denominator of a percentage metric.
type Ratio interface {
	Numerator(ctx context.Context) (int, error)
	Denominator(ctx context.Context) (int, error)
}

// SourceRatio reads both parts of a ratio from one Source.
type SourceRatio struct {
	Source        source.Source
	NumeratorID   string
	DenominatorID string
}

// Numerator implements Ratio.
func (r SourceRatio) Numerator(ctx context.Context) (int, error) {
	return r.count(ctx, r.NumeratorID)
}

// Denominator implements Ratio.
func (r SourceRatio) Denominator(ctx context.Context) (int, error) {
	return r.count(ctx, r.DenominatorID)
}

func (r SourceRatio) count(ctx context.Context, id string) (int, error) {
	n, err := r.Source.Measure(ctx, id)
	if err != nil {
		return 0, err
	}
	return int(math.Round(n)), nil
}

// URL forwards to the source when it is a Linker.
func (r SourceRatio) URL(string) string {
	if l, ok := r.Source.(source.Linker); ok {
		return l.URL(r.NumeratorID)
	}
	return ""
}

func (m *Metric) ratioValue(ctx context.Context, c *Cache) measured {
	num, err := m.ratio.Numerator(ctx)
	if err != nil {
		c.fail(m.id, fmt.Errorf("numerator: %w", err))
		return measured{value: Missing, ratio: true}
	}
	den, err := m.ratio.Denominator(ctx)
	if err != nil {
		c.fail(m.id, fmt.Errorf("denominator: %w", err))
		return measured{value: Missing, ratio: true, numerator: num}
	}
	return percentage(m.spec, num, den)
}

// percentage computes round-half-up(100·num/den). A zero denominator is 0%
// for lower-is-better; for higher-is-better spec.ZeroDenominator decides.
func percentage(spec Spec, num, den int) measured {
	res := measured{ratio: true, numerator: num, denominator: den}
	if den == 0 {
		if _, lower := spec.Direction.(lowerIsBetter); !lower && spec.ZeroDenominator == ZeroAsMissing {
			res.value = Missing
			return res
		}
		res.value = Of(0)
		return res
	}
	pct := 100 * float64(num) / float64(den)
	res.numerical = pct
	res.value = Of(math.Floor(pct + 0.5))
	return res
}
