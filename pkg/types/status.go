package types

import "fmt"

// Status is the categorical outcome of evaluating one metric.
type Status string

// Status categories. A missing measurement is reported as StatusRed; callers
// tell the two apart through MetricReport.Missing, not through the category.
const (
	StatusPerfect Status = "perfect"
	StatusGreen   Status = "green"
	StatusYellow  Status = "yellow"
	StatusRed     Status = "red"
	StatusGrey    Status = "grey"
)

// AllStatuses lists every category in dashboard order.
var AllStatuses = []Status{StatusPerfect, StatusGreen, StatusYellow, StatusRed, StatusGrey}

// Severity ranks a status for escalation: perfect < green < yellow < red.
// Grey sits outside the ordering and returns -1, as does any unknown value.
func Severity(s Status) int {
	switch s {
	case StatusPerfect:
		return 0
	case StatusGreen:
		return 1
	case StatusYellow:
		return 2
	case StatusRed:
		return 3
	default:
		return -1
	}
}

// Worst returns the more severe of a and b. If either is outside the
// severity ordering (grey), a is returned unchanged.
func Worst(a, b Status) Status {
	if Severity(a) < 0 || Severity(b) < 0 {
		return a
	}
	if Severity(b) > Severity(a) {
		return b
	}
	return a
}

// Valid reports whether s is one of the known categories.
func (s Status) Valid() bool {
	switch s {
	case StatusPerfect, StatusGreen, StatusYellow, StatusRed, StatusGrey:
		return true
	}
	return false
}

// ParseStatus converts a string into a Status, rejecting unknown names.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}
