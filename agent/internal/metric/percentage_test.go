package metric

import (
	"context"
	"errors"
	"testing"

	"github.com/obsidianstack/healthboard/pkg/types"
)

type fixedRatio struct {
	num, den int
	err      error
}

func (r fixedRatio) Numerator(context.Context) (int, error)   { return r.num, r.err }
func (r fixedRatio) Denominator(context.Context) (int, error) { return r.den, nil }

func lowerPct() Spec {
	return Spec{Kind: "lower_pct", Direction: LowerIsBetter, Percentage: true, Target: 10, LowTarget: 20}
}

func higherPct() Spec {
	return Spec{Kind: "higher_pct", Direction: HigherIsBetter, Percentage: true, Target: 90, LowTarget: 80, Perfect: 100}
}

func TestPercentage_Status(t *testing.T) {
	cases := []struct {
		name     string
		spec     Spec
		num, den int
		value    float64
		want     types.Status
	}{
		{"lower zero denominator", lowerPct(), 0, 0, 0, types.StatusPerfect},
		{"lower 1%", lowerPct(), 1, 100, 1, types.StatusGreen},
		{"lower 20%", lowerPct(), 20, 100, 20, types.StatusYellow},
		{"lower 40%", lowerPct(), 40, 100, 40, types.StatusRed},
		{"higher 0 of 5", higherPct(), 0, 5, 0, types.StatusRed},
		{"higher 85%", higherPct(), 85, 100, 85, types.StatusYellow},
		{"higher 95%", higherPct(), 95, 100, 95, types.StatusGreen},
		{"higher 100%", higherPct(), 100, 100, 100, types.StatusPerfect},
		{"higher zero denominator as zero", higherPct(), 0, 0, 0, types.StatusRed},
		{"round half up", lowerPct(), 1, 8, 13, types.StatusYellow},
		{"round down", lowerPct(), 1, 3, 33, types.StatusRed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := mustNew(t, tc.spec, Options{Ratio: fixedRatio{num: tc.num, den: tc.den}})
			ev := m.Evaluate(context.Background(), NewCache(baseTime))
			if v, ok := ev.Value.Float(); !ok || v != tc.value {
				t.Errorf("value = %v (present=%v), want %v", v, ok, tc.value)
			}
			if ev.Status != tc.want {
				t.Errorf("status = %s, want %s", ev.Status, tc.want)
			}
		})
	}
}

func TestPercentage_ZeroDenominatorAsMissing(t *testing.T) {
	spec := higherPct()
	spec.ZeroDenominator = ZeroAsMissing
	m := mustNew(t, spec, Options{Ratio: fixedRatio{}})
	ev := m.Evaluate(context.Background(), NewCache(baseTime))
	if !ev.Missing || ev.Status != types.StatusRed {
		t.Errorf("evaluation = %+v, want missing", ev)
	}

	// The policy has no effect on lower-is-better percentages.
	spec = lowerPct()
	spec.ZeroDenominator = ZeroAsMissing
	m = mustNew(t, spec, Options{Ratio: fixedRatio{}})
	if got := m.Status(context.Background(), NewCache(baseTime)); got != types.StatusPerfect {
		t.Errorf("lower status = %s, want perfect", got)
	}
}

func TestPercentage_NumericalValueIsUnrounded(t *testing.T) {
	m := mustNew(t, lowerPct(), Options{Ratio: fixedRatio{num: 1, den: 3}})
	c := NewCache(baseTime)
	got := m.NumericalValue(context.Background(), c)
	if got < 33.33 || got > 33.34 {
		t.Errorf("numerical value = %v, want 33.33...", got)
	}
	if v, _ := m.Value(context.Background(), c).Float(); v != 33 {
		t.Errorf("value = %v, want 33", v)
	}
}

func TestPercentage_RatioErrorIsMissing(t *testing.T) {
	boom := errors.New("timeout")
	m := mustNew(t, lowerPct(), Options{Ratio: fixedRatio{err: boom}})
	c := NewCache(baseTime)
	if !m.Evaluate(context.Background(), c).Missing {
		t.Fatal("expected missing")
	}
	if err := c.Errors()[m.ID()]; !errors.Is(err, boom) {
		t.Errorf("cache error = %v", err)
	}
}

func TestPercentage_FixedYAxisAndText(t *testing.T) {
	spec, _ := Lookup(KindDuplication)
	m := mustNew(t, spec, Options{
		Subject: Subject{ID: "abc", Name: "ABC"},
		Ratio:   SourceRatio{Source: constant(7), NumeratorID: "dup", DenominatorID: "dup"},
	})
	if lo, hi := m.YAxisRange(context.Background()); lo != 0 || hi != 100 {
		t.Errorf("y axis = (%v, %v)", lo, hi)
	}
	if got := m.Report(context.Background(), NewCache(baseTime)); got != "ABC has 100% duplicated lines (7 of 7 lines)." {
		t.Errorf("report = %q", got)
	}
}
