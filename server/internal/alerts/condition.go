package alerts

import (
	"strconv"
	"strings"

	"github.com/obsidianstack/healthboard/pkg/types"
)

const secondsPerDay = 24 * 60 * 60

// evalCondition evaluates a rule condition string against one metric of a
// report.
//
// Supported expressions (field operator value):
//
//	status == red
//	status != green
//	missing == true
//	value > 10
//	age_days > 14
//
// Numeric fields never fire for a missing metric. Returns (fires bool,
// triggering value float64); (false, 0) if the expression cannot be parsed.
func evalCondition(cond string, m types.MetricReport) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "status":
		return compareString(string(m.Status), op, rhs), float64(types.Severity(m.Status))

	case "missing":
		want, err := strconv.ParseBool(rhs)
		if err != nil {
			return false, 0
		}
		return compareString(strconv.FormatBool(m.Missing), op, strconv.FormatBool(want)), 0

	default:
		if m.Missing {
			return false, 0
		}
		v, ok := numericField(field, m)
		if !ok {
			return false, 0
		}
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(v, op, threshold), v
	}
}

// numericField maps a field name to its value in the metric report.
func numericField(field string, m types.MetricReport) (float64, bool) {
	switch field {
	case "value":
		if m.Value == nil {
			return 0, false
		}
		return *m.Value, true
	case "age_days":
		return m.AgeSeconds / secondsPerDay, true
	default:
		return 0, false
	}
}

func compareString(v, op, want string) bool {
	switch op {
	case "==":
		return v == want
	case "!=":
		return v != want
	default:
		return false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
