package types

import "testing"

func TestSeverity_Order(t *testing.T) {
	order := []Status{StatusPerfect, StatusGreen, StatusYellow, StatusRed}
	for i := 1; i < len(order); i++ {
		if Severity(order[i-1]) >= Severity(order[i]) {
			t.Errorf("Severity(%s) = %d, want < Severity(%s) = %d",
				order[i-1], Severity(order[i-1]), order[i], Severity(order[i]))
		}
	}
	if Severity(StatusGrey) != -1 {
		t.Errorf("Severity(grey) = %d, want -1", Severity(StatusGrey))
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		a, b, want Status
	}{
		{StatusPerfect, StatusYellow, StatusYellow},
		{StatusRed, StatusYellow, StatusRed},
		{StatusGreen, StatusGreen, StatusGreen},
		{StatusGrey, StatusRed, StatusGrey},
		{StatusGreen, StatusGrey, StatusGreen},
	}
	for _, tc := range tests {
		if got := Worst(tc.a, tc.b); got != tc.want {
			t.Errorf("Worst(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseStatus("blue"); err == nil {
		t.Error("ParseStatus(blue): expected error, got nil")
	}
}

func TestReport_CountsAndLookup(t *testing.T) {
	r := &Report{Metrics: []MetricReport{
		{ID: "a", Status: StatusGreen},
		{ID: "b", Status: StatusGreen},
		{ID: "c", Status: StatusRed, Missing: true},
	}}
	c := r.Counts()
	if c[StatusGreen] != 2 || c[StatusRed] != 1 {
		t.Errorf("Counts = %v, want green=2 red=1", c)
	}
	if m := r.Metric("c"); m == nil || !m.Missing {
		t.Errorf("Metric(c) = %+v, want missing entry", m)
	}
	if m := r.Metric("zzz"); m != nil {
		t.Errorf("Metric(zzz) = %+v, want nil", m)
	}
}
