package metric

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// membersWith builds leaf metrics that evaluate to the given statuses under
// lowerSpec (target 0, low 5, perfect 0): perfect=0, green=-1, yellow=3,
// red=6, grey=3 with debt.
func membersWith(t *testing.T, counts map[types.Status]int) []*Metric {
	t.Helper()
	var out []*Metric
	n := 0
	add := func(v float64, debt *TechnicalDebtTarget) {
		spec := lowerSpec()
		spec.Perfect = -100
		out = append(out, mustNew(t, spec, Options{
			Subject: Subject{ID: fmt.Sprintf("m%d", n)},
			Source:  constant(v),
			Debt:    debt,
		}))
		n++
	}
	for st, c := range counts {
		for i := 0; i < c; i++ {
			switch st {
			case types.StatusGreen:
				add(0, nil)
			case types.StatusYellow:
				add(3, nil)
			case types.StatusRed:
				add(6, nil)
			case types.StatusGrey:
				add(3, &TechnicalDebtTarget{AcceptedValue: 5})
			}
		}
	}
	return out
}

func standardMeta(t *testing.T, kind string, members []*Metric) *Metric {
	t.Helper()
	mk, ok := LookupMeta(kind)
	if !ok {
		t.Fatalf("unknown meta kind %s", kind)
	}
	m, err := NewMeta(mk.Spec, Subject{ID: "project"}, members, mk.Matching...)
	if err != nil {
		t.Fatalf("NewMeta: %v", err)
	}
	return m
}

func TestMeta_PercentGreenExample(t *testing.T) {
	members := membersWith(t, map[types.Status]int{
		types.StatusGreen:  7,
		types.StatusYellow: 1,
		types.StatusRed:    1,
		types.StatusGrey:   1,
	})
	ctx := context.Background()
	c := NewCache(baseTime)
	m := standardMeta(t, KindPercentGreen, members)

	ev := m.Evaluate(ctx, c)
	if v, _ := ev.Value.Float(); v != 70 {
		t.Errorf("value = %v, want 70", v)
	}
	if ev.Status != types.StatusRed {
		t.Errorf("status = %s, want red", ev.Status)
	}
	if got := m.Report(ctx, c); got != "70% of the metrics (7 of 10) score green." {
		t.Errorf("report = %q", got)
	}
}

func TestMeta_StandardKindsAreIndependent(t *testing.T) {
	members := membersWith(t, map[types.Status]int{
		types.StatusGreen:  7,
		types.StatusYellow: 1,
		types.StatusRed:    1,
		types.StatusGrey:   1,
	})
	ctx := context.Background()
	c := NewCache(baseTime)
	for _, leaf := range members {
		leaf.Evaluate(ctx, c)
	}

	want := map[string]struct {
		value  float64
		status types.Status
	}{
		KindPercentGreen:  {70, types.StatusRed},
		KindPercentRed:    {10, types.StatusRed},
		KindPercentYellow: {10, types.StatusYellow},
		KindPercentGrey:   {10, types.StatusRed},
	}
	for kind, w := range want {
		ev := standardMeta(t, kind, members).Evaluate(ctx, c)
		if v, _ := ev.Value.Float(); v != w.value || ev.Status != w.status {
			t.Errorf("%s: value=%v status=%s, want %v %s", kind, v, ev.Status, w.value, w.status)
		}
	}
}

func TestMeta_MissingMembersCountAsRed(t *testing.T) {
	ok := mustNew(t, lowerSpec(), Options{Subject: Subject{ID: "a"}, Source: constant(0)})
	missing := mustNew(t, lowerSpec(), Options{Subject: Subject{ID: "b"}, Source: failing(errors.New("down"))})
	m := standardMeta(t, KindPercentRed, []*Metric{ok, missing})
	if v, _ := m.Value(context.Background(), NewCache(baseTime)).Float(); v != 50 {
		t.Errorf("value = %v, want 50", v)
	}
}

func TestMeta_NoMembers(t *testing.T) {
	ctx := context.Background()
	green := standardMeta(t, KindPercentGreen, nil)
	if got := green.Status(ctx, NewCache(baseTime)); got != types.StatusRed {
		t.Errorf("percent green without members = %s, want red", got)
	}
	red := standardMeta(t, KindPercentRed, nil)
	if got := red.Status(ctx, NewCache(baseTime)); got != types.StatusPerfect {
		t.Errorf("percent red without members = %s, want perfect", got)
	}
}

func TestMeta_Contract(t *testing.T) {
	mk, _ := LookupMeta(KindPercentGreen)
	inner := standardMeta(t, KindPercentRed, nil)
	if _, err := NewMeta(mk.Spec, Subject{}, []*Metric{inner}, mk.Matching...); !errors.Is(err, ErrNestedMeta) {
		t.Errorf("nested: err = %v, want ErrNestedMeta", err)
	}
	if _, err := NewMeta(mk.Spec, Subject{}, nil); err == nil {
		t.Error("expected error without matching statuses")
	}
	if !inner.IsMeta() {
		t.Error("IsMeta = false")
	}
	if got := standardMeta(t, KindPercentGreen, nil).Matching(); len(got) != 2 {
		t.Errorf("matching = %v", got)
	}
}
