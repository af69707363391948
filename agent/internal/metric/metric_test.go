package metric

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/obsidianstack/healthboard/agent/internal/config"
	"github.com/obsidianstack/healthboard/agent/internal/source"
	"github.com/obsidianstack/healthboard/pkg/history"
	"github.com/obsidianstack/healthboard/pkg/types"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// tick returns baseTime advanced by n days.
func tick(n int) time.Time { return baseTime.Add(time.Duration(n) * day) }

func constant(v float64) source.Source {
	return source.Func(func(context.Context, string) (float64, error) { return v, nil })
}

func failing(err error) source.Source {
	return source.Func(func(context.Context, string) (float64, error) { return 0, err })
}

// lowerSpec is target 0, low target 5, perfect 0.
func lowerSpec() Spec {
	return Spec{Kind: "bugs", Name: "Bugs", Direction: LowerIsBetter, Target: 0, LowTarget: 5, Perfect: 0}
}

func higherSpec() Spec {
	return Spec{Kind: "coverage", Name: "Coverage", Direction: HigherIsBetter, Target: 80, LowTarget: 60, Perfect: 100}
}

func mustNew(t *testing.T, spec Spec, opts Options) *Metric {
	t.Helper()
	m, err := New(spec, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestStatus_LowerIsBetterExample(t *testing.T) {
	cases := []struct {
		value float64
		debt  *TechnicalDebtTarget
		want  types.Status
	}{
		{0, nil, types.StatusPerfect},
		{3, nil, types.StatusYellow},
		{5, nil, types.StatusYellow},
		{6, nil, types.StatusRed},
		{6, &TechnicalDebtTarget{AcceptedValue: 6}, types.StatusGrey},
		{7, &TechnicalDebtTarget{AcceptedValue: 6}, types.StatusRed},
	}
	for _, tc := range cases {
		m := mustNew(t, lowerSpec(), Options{Subject: Subject{ID: "p"}, Source: constant(tc.value), Debt: tc.debt})
		got := m.Status(context.Background(), NewCache(baseTime))
		if got != tc.want {
			t.Errorf("value=%v debt=%v: status = %s, want %s", tc.value, tc.debt, got, tc.want)
		}
	}
}

func TestStatus_HigherIsBetter(t *testing.T) {
	cases := []struct {
		value float64
		want  types.Status
	}{
		{100, types.StatusPerfect},
		{90, types.StatusGreen},
		{80, types.StatusGreen},
		{70, types.StatusYellow},
		{60, types.StatusYellow},
		{59, types.StatusRed},
	}
	for _, tc := range cases {
		m := mustNew(t, higherSpec(), Options{Source: constant(tc.value)})
		if got := m.Status(context.Background(), NewCache(baseTime)); got != tc.want {
			t.Errorf("value=%v: status = %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestStatus_HigherIsBetterDebt(t *testing.T) {
	m := mustNew(t, higherSpec(), Options{Source: constant(50), Debt: &TechnicalDebtTarget{AcceptedValue: 40}})
	if got := m.Status(context.Background(), NewCache(baseTime)); got != types.StatusGrey {
		t.Errorf("status = %s, want grey", got)
	}
	m = mustNew(t, higherSpec(), Options{Source: constant(30), Debt: &TechnicalDebtTarget{AcceptedValue: 40}})
	if got := m.Status(context.Background(), NewCache(baseTime)); got != types.StatusRed {
		t.Errorf("status = %s, want red", got)
	}
}

func TestStatus_ThresholdProperty(t *testing.T) {
	spec := Spec{Kind: "k", Direction: LowerIsBetter, Target: 2, LowTarget: 7, Perfect: -1}
	for v := -1.0; v <= 12; v += 0.5 {
		m := mustNew(t, spec, Options{Source: constant(v)})
		got := m.Status(context.Background(), NewCache(baseTime))
		if v <= spec.Target && got != types.StatusGreen && got != types.StatusPerfect {
			t.Errorf("value=%v <= target: status = %s", v, got)
		}
		if v > spec.LowTarget && got != types.StatusRed {
			t.Errorf("value=%v > low target: status = %s", v, got)
		}
	}
}

func TestEvaluate_MissingBeatsDebt(t *testing.T) {
	boom := errors.New("connection refused")
	m := mustNew(t, lowerSpec(), Options{
		Subject: Subject{ID: "p", Name: "Product"},
		Source:  failing(boom),
		Debt:    &TechnicalDebtTarget{AcceptedValue: 100},
	})
	c := NewCache(baseTime)
	ev := m.Evaluate(context.Background(), c)
	if !ev.Missing || ev.Status != types.StatusRed || ev.Debt {
		t.Fatalf("evaluation = %+v, want missing red without debt", ev)
	}
	if !ev.Value.IsMissing() {
		t.Error("value should be missing")
	}
	if err := c.Errors()[m.ID()]; !errors.Is(err, boom) {
		t.Errorf("cache error = %v, want %v", err, boom)
	}
}

func TestEvaluate_NoDataIsMissing(t *testing.T) {
	m := mustNew(t, lowerSpec(), Options{Source: failing(source.ErrNoData)})
	ev := m.Evaluate(context.Background(), NewCache(baseTime))
	if !ev.Missing {
		t.Fatal("expected missing")
	}
	if got := m.NumericalValue(context.Background(), NewCache(baseTime)); got != 0 {
		t.Errorf("numerical value of missing = %v, want 0", got)
	}
}

func TestEvaluate_Memoized(t *testing.T) {
	var calls atomic.Int32
	src := source.Func(func(context.Context, string) (float64, error) {
		calls.Add(1)
		return 3, nil
	})
	m := mustNew(t, lowerSpec(), Options{Source: src})
	c := NewCache(baseTime)
	first := m.Evaluate(context.Background(), c)
	for i := 0; i < 5; i++ {
		if got := m.Evaluate(context.Background(), c); got != first {
			t.Fatalf("evaluation changed within a pass: %+v vs %+v", got, first)
		}
		_ = m.Value(context.Background(), c)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestEscalate_NeverDowngrades(t *testing.T) {
	ages := []time.Duration{0, 5 * day, 10 * day, 30 * day}
	for _, st := range types.AllStatuses {
		for _, age := range ages {
			got, _ := escalate(st, age, 7*day, 21*day)
			if st == types.StatusGrey {
				if got != types.StatusGrey {
					t.Errorf("grey escalated to %s", got)
				}
				continue
			}
			if types.Severity(got) < types.Severity(st) {
				t.Errorf("escalate(%s, %s) = %s downgrades", st, age, got)
			}
		}
	}
}

func TestEscalate_Table(t *testing.T) {
	cases := []struct {
		st        types.Status
		age       time.Duration
		want      types.Status
		escalated bool
	}{
		{types.StatusGreen, 6 * day, types.StatusGreen, false},
		{types.StatusGreen, 8 * day, types.StatusYellow, true},
		{types.StatusPerfect, 8 * day, types.StatusYellow, true},
		{types.StatusYellow, 8 * day, types.StatusYellow, false},
		{types.StatusGreen, 22 * day, types.StatusRed, true},
		{types.StatusRed, 22 * day, types.StatusRed, false},
	}
	for _, tc := range cases {
		got, esc := escalate(tc.st, tc.age, 7*day, 21*day)
		if got != tc.want || esc != tc.escalated {
			t.Errorf("escalate(%s, %s) = %s/%v, want %s/%v", tc.st, tc.age, got, esc, tc.want, tc.escalated)
		}
	}
	// Zero bounds never escalate.
	if got, esc := escalate(types.StatusGreen, 1000*day, 0, 0); got != types.StatusGreen || esc {
		t.Errorf("zero bounds escalated to %s", got)
	}
}

func TestEvaluate_StalenessFromHistory(t *testing.T) {
	ctx := context.Background()
	h := history.NewMemory(0)
	spec := lowerSpec()
	spec.OldAge = 7 * day
	spec.MaxOldAge = 21 * day
	m := mustNew(t, spec, Options{Subject: Subject{ID: "p"}, Source: constant(3), History: h})

	for i := 0; i < 3; i++ {
		err := h.Record(ctx, m.ID(), Of(3).Ptr(), types.StatusYellow, tick(i))
		if err != nil {
			t.Fatal(err)
		}
	}

	ev := m.Evaluate(ctx, NewCache(tick(10)))
	if ev.Base != types.StatusYellow || ev.Status != types.StatusYellow || ev.Escalated {
		t.Errorf("after 10 days: %+v, want yellow unescalated", ev)
	}
	if ev.Age != 10*day {
		t.Errorf("age = %s, want 240h", ev.Age)
	}

	ev = m.Evaluate(ctx, NewCache(tick(22)))
	if ev.Status != types.StatusRed || !ev.Escalated || ev.Base != types.StatusYellow {
		t.Errorf("after 22 days: %+v, want red escalated from yellow", ev)
	}
}

func TestEvaluate_StatusChangeResetsAge(t *testing.T) {
	ctx := context.Background()
	h := history.NewMemory(0)
	spec := lowerSpec()
	spec.OldAge = 7 * day
	spec.MaxOldAge = 21 * day
	m := mustNew(t, spec, Options{Source: constant(6), History: h})
	for i := 0; i < 3; i++ {
		if err := h.Record(ctx, m.ID(), Of(3).Ptr(), types.StatusYellow, tick(i)); err != nil {
			t.Fatal(err)
		}
	}
	ev := m.Evaluate(ctx, NewCache(tick(40)))
	if ev.Status != types.StatusRed || ev.Age != 0 || ev.Escalated {
		t.Errorf("evaluation = %+v, want red with zero age", ev)
	}
}

func TestEvaluate_UntimestampedHistoryIsMaximalAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte(`{"bugs-p": 3}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := history.NewFile(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	spec := lowerSpec()
	spec.OldAge = 7 * day
	spec.MaxOldAge = 21 * day
	m := mustNew(t, spec, Options{Subject: Subject{ID: "p"}, Source: constant(0), History: h})

	ev := m.Evaluate(context.Background(), NewCache(baseTime))
	if ev.Status != types.StatusRed || !ev.Escalated || ev.Base != types.StatusPerfect {
		t.Errorf("evaluation = %+v, want perfect escalated to red", ev)
	}
}

func TestEvaluate_NeverRecordedHasZeroAge(t *testing.T) {
	spec := lowerSpec()
	spec.OldAge = time.Hour
	spec.MaxOldAge = 2 * time.Hour
	m := mustNew(t, spec, Options{Source: constant(0), History: history.NewMemory(0)})
	ev := m.Evaluate(context.Background(), NewCache(baseTime))
	if ev.Status != types.StatusPerfect || ev.Age != 0 {
		t.Errorf("evaluation = %+v, want perfect with zero age", ev)
	}
}

func TestEvaluate_GreyIsNotEscalated(t *testing.T) {
	spec := lowerSpec()
	spec.OldAge = time.Hour
	spec.MaxOldAge = 2 * time.Hour
	m := mustNew(t, spec, Options{
		Source: &datedSource{value: 4, at: tick(-100)},
		Debt:   &TechnicalDebtTarget{AcceptedValue: 5},
	})
	if got := m.Status(context.Background(), NewCache(baseTime)); got != types.StatusGrey {
		t.Errorf("status = %s, want grey", got)
	}
}

type datedSource struct {
	value float64
	at    time.Time
	err   error
}

func (d *datedSource) Measure(context.Context, string) (float64, error) { return d.value, nil }

func (d *datedSource) MeasuredAt(context.Context, string) (time.Time, error) { return d.at, d.err }

func (d *datedSource) URL(id string) string { return "https://wiki.example.com/" + id }

func TestEvaluate_StalenessFromMeasurementDate(t *testing.T) {
	spec, _ := Lookup(KindTeamSpirit)
	cases := []struct {
		name string
		src  *datedSource
		want types.Status
	}{
		{"fresh", &datedSource{value: 2, at: tick(-1)}, types.StatusPerfect},
		{"old", &datedSource{value: 2, at: baseTime.Add(-spec.OldAge - time.Hour)}, types.StatusYellow},
		{"too old", &datedSource{value: 2, at: baseTime.Add(-spec.MaxOldAge - time.Hour)}, types.StatusRed},
		{"undated without history", &datedSource{value: 2, err: source.ErrNoData}, types.StatusPerfect},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := mustNew(t, spec, Options{Subject: Subject{ID: "team"}, Source: tc.src, SourceID: "team"})
			if got := m.Status(context.Background(), NewCache(baseTime)); got != tc.want {
				t.Errorf("status = %s, want %s", got, tc.want)
			}
			if m.URL() != "https://wiki.example.com/team" {
				t.Errorf("URL = %q", m.URL())
			}
		})
	}
}

func TestEvaluate_UndatedFileEntryUsesHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	doc := "measurements:\n  rt: 0\n  spirit: {value: \":-)\", date: \"2024-01-01\"}\n"
	if err := os.WriteFile(filepath.Join(dir, "m.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := source.NewFile(config.Source{ID: "wiki", Type: "file", Path: filepath.Join(dir, "m.yaml")})
	if err != nil {
		t.Fatal(err)
	}

	h := history.NewMemory(0)
	spec, _ := Lookup(KindResponseTimeViolations)
	m := mustNew(t, spec, Options{Subject: Subject{ID: "abc"}, Source: src, SourceID: "rt", History: h})
	if err := h.Record(ctx, m.ID(), Of(0).Ptr(), types.StatusPerfect, tick(-1)); err != nil {
		t.Fatal(err)
	}

	ev := m.Evaluate(ctx, NewCache(baseTime))
	if ev.Status != types.StatusPerfect || ev.Escalated {
		t.Errorf("evaluation = %+v, want perfect unescalated", ev)
	}
	if ev.Age != day {
		t.Errorf("age = %s, want 24h from the history streak", ev.Age)
	}

	// A dated entry still anchors on its own date, whatever history says.
	team, _ := Lookup(KindTeamSpirit)
	tm := mustNew(t, team, Options{Subject: Subject{ID: "a"}, Source: src, SourceID: "spirit", History: h})
	if err := h.Record(ctx, tm.ID(), Of(2).Ptr(), types.StatusPerfect, tick(-1)); err != nil {
		t.Fatal(err)
	}
	if got := tm.Status(ctx, NewCache(baseTime)); got != types.StatusRed {
		t.Errorf("team spirit dated 60 days ago: status = %s, want red", got)
	}
}

func TestNew_ContractViolations(t *testing.T) {
	if _, err := New(lowerSpec(), Options{}); !errors.Is(err, ErrNoValueSource) {
		t.Errorf("no source: err = %v, want ErrNoValueSource", err)
	}
	bad := lowerSpec()
	bad.Target, bad.LowTarget = 10, 5
	if _, err := New(bad, Options{Source: constant(1)}); !errors.Is(err, ErrThresholdOrder) {
		t.Errorf("lower 10/5: err = %v, want ErrThresholdOrder", err)
	}
	bad = higherSpec()
	bad.Target, bad.LowTarget = 50, 60
	if _, err := New(bad, Options{Source: constant(1)}); !errors.Is(err, ErrThresholdOrder) {
		t.Errorf("higher 50/60: err = %v, want ErrThresholdOrder", err)
	}
	dup, _ := Lookup(KindDuplication)
	if _, err := New(dup, Options{Source: constant(1)}); !errors.Is(err, ErrNoValueSource) {
		t.Errorf("percentage without ratio: err = %v, want ErrNoValueSource", err)
	}
}

func TestStableID(t *testing.T) {
	m := mustNew(t, lowerSpec(), Options{Subject: Subject{ID: "pr"}, Source: constant(1)})
	if m.ID() != "bugs-pr" {
		t.Errorf("ID = %q", m.ID())
	}
	m = mustNew(t, lowerSpec(), Options{ID: "custom", Source: constant(1)})
	if m.ID() != "custom" {
		t.Errorf("ID = %q", m.ID())
	}
}

func TestYAxisRange(t *testing.T) {
	ctx := context.Background()
	h := history.NewMemory(0)
	m := mustNew(t, lowerSpec(), Options{Subject: Subject{ID: "p"}, Source: constant(1), History: h})

	if lo, hi := m.YAxisRange(ctx); lo != 0 || hi != 100 {
		t.Errorf("empty history: (%v, %v), want (0, 100)", lo, hi)
	}
	for i, v := range []float64{0, 0} {
		_ = h.Record(ctx, m.ID(), &v, types.StatusPerfect, tick(i))
	}
	if lo, hi := m.YAxisRange(ctx); lo != 0 || hi != 100 {
		t.Errorf("all zero: (%v, %v), want (0, 100)", lo, hi)
	}
	for i, v := range []float64{4, 12, 7} {
		_ = h.Record(ctx, m.ID(), &v, types.StatusYellow, tick(i+2))
	}
	if lo, hi := m.YAxisRange(ctx); lo != 0 || hi != 12 {
		t.Errorf("history max 12: (%v, %v), want (0, 12)", lo, hi)
	}

	spirit, _ := Lookup(KindTeamSpirit)
	m = mustNew(t, spirit, Options{Source: constant(1), History: h})
	if lo, hi := m.YAxisRange(ctx); lo != 0 || hi != 2 {
		t.Errorf("team spirit: (%v, %v), want (0, 2)", lo, hi)
	}
}

func TestReportText(t *testing.T) {
	ctx := context.Background()
	spec, _ := Lookup(KindFailingUnittests)
	subject := Subject{ID: "abc", Name: "Product ABC"}

	m := mustNew(t, spec, Options{Subject: subject, Source: constant(0)})
	if got := m.Report(ctx, NewCache(baseTime)); got != "All unit tests of Product ABC pass." {
		t.Errorf("perfect report = %q", got)
	}
	m = mustNew(t, spec, Options{Subject: subject, Source: constant(4)})
	if got := m.Report(ctx, NewCache(baseTime)); got != "4 unit tests of Product ABC fail." {
		t.Errorf("report = %q", got)
	}
	m = mustNew(t, spec, Options{Subject: subject, Source: failing(source.ErrNoData)})
	if got := m.Report(ctx, NewCache(baseTime)); got != "The unit test results of Product ABC are unavailable." {
		t.Errorf("missing report = %q", got)
	}
}

func TestNormAndComment(t *testing.T) {
	m := mustNew(t, lowerSpec(), Options{
		Source: constant(1),
		Debt:   &TechnicalDebtTarget{AcceptedValue: 10, Explanation: "Legacy module."},
	})
	if got := m.Norm(); got != "At most 0. More than 5 is red." {
		t.Errorf("norm = %q", got)
	}
	if got := m.Comment(); got != "The currently accepted technical debt is 10. Legacy module." {
		t.Errorf("comment = %q", got)
	}

	spirit, _ := Lookup(KindTeamSpirit)
	m = mustNew(t, spirit, Options{Source: constant(1)})
	if !strings.Contains(m.Norm(), "older than 21 days the status is yellow, older than 42 days is red") {
		t.Errorf("norm = %q", m.Norm())
	}
	if m.Comment() != "" {
		t.Errorf("comment without debt = %q", m.Comment())
	}
}

func TestToolVersionText(t *testing.T) {
	spec, _ := Lookup(KindToolVersion)
	m := mustNew(t, spec, Options{Subject: Subject{ID: "sonar", Name: "Sonar"}, Source: constant(4_005_005)})
	ctx := context.Background()
	c := NewCache(baseTime)
	if got := m.Status(ctx, c); got != types.StatusYellow {
		t.Errorf("status = %s, want yellow", got)
	}
	if got := m.Report(ctx, c); got != "Sonar runs version 4.5.5." {
		t.Errorf("report = %q", got)
	}
	if got := m.Norm(); got != "Sonar runs at least version 4.5.6, lower than version 4.5.4 is red." {
		t.Errorf("norm = %q", got)
	}
}

func TestCertificateExpiry(t *testing.T) {
	spec, _ := Lookup(KindCertificateExpiry)
	ctx := context.Background()
	tests := []struct {
		days float64
		want types.Status
	}{
		{90, types.StatusGreen},
		{30, types.StatusGreen},
		{12, types.StatusYellow},
		{3, types.StatusRed},
		{-2, types.StatusRed},
	}
	for _, tt := range tests {
		m := mustNew(t, spec, Options{Subject: Subject{ID: "portal", Name: "Portal"}, Source: constant(tt.days)})
		if got := m.Status(ctx, NewCache(baseTime)); got != tt.want {
			t.Errorf("%v days: status = %s, want %s", tt.days, got, tt.want)
		}
	}
	m := mustNew(t, spec, Options{Subject: Subject{ID: "portal", Name: "Portal"}, Source: constant(12)})
	if got := m.Report(ctx, NewCache(baseTime)); got != "The certificate of Portal expires in 12 days." {
		t.Errorf("report = %q", got)
	}
}

func TestCatalogue_SpecsValid(t *testing.T) {
	for _, k := range Kinds() {
		spec, _ := Lookup(k)
		if err := spec.Validate(); err != nil {
			t.Errorf("%s: %v", k, err)
		}
	}
	for _, k := range MetaKinds() {
		mk, _ := LookupMeta(k)
		if err := mk.Spec.Validate(); err != nil {
			t.Errorf("%s: %v", k, err)
		}
		if len(mk.Matching) == 0 {
			t.Errorf("%s: no matching statuses", k)
		}
	}
}
