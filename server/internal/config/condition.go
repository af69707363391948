package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition fields understood by the alert engine.
var conditionFields = map[string]bool{
	"status":   false,
	"missing":  false,
	"value":    true,
	"age_days": true,
}

// ValidateCondition checks that cond has the form "<field> <op> <operand>".
func ValidateCondition(cond string) error {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return fmt.Errorf("condition %q: want \"<field> <op> <value>\"", cond)
	}
	field, op, rhs := parts[0], parts[1], parts[2]
	numeric, ok := conditionFields[field]
	if !ok {
		return fmt.Errorf("condition %q: unknown field %q", cond, field)
	}
	if !numeric {
		if op != "==" && op != "!=" {
			return fmt.Errorf("condition %q: %s supports only == and !=", cond, field)
		}
		return nil
	}
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return fmt.Errorf("condition %q: unknown operator %q", cond, op)
	}
	if _, err := strconv.ParseFloat(rhs, 64); err != nil {
		return fmt.Errorf("condition %q: %q is not a number", cond, rhs)
	}
	return nil
}
