package metric

import "github.com/obsidianstack/healthboard/pkg/types"

// Direction decides what "better" means for a metric.
type Direction interface {
	// Name is the configuration name of the direction.
	Name() string

	// Classify maps a value onto green, yellow or red.
	Classify(value, target, lowTarget float64) types.Status

	// Covers reports whether value is not worse than accepted.
	Covers(value, accepted float64) bool

	// Ordered reports whether target and lowTarget are consistent.
	Ordered(target, lowTarget float64) bool
}

var (
	// LowerIsBetter: value <= target is green, value > lowTarget is red.
	LowerIsBetter Direction = lowerIsBetter{}
	// HigherIsBetter: value >= target is green, value < lowTarget is red.
	HigherIsBetter Direction = higherIsBetter{}
)

type lowerIsBetter struct{}

func (lowerIsBetter) Name() string { return "lower" }

func (lowerIsBetter) Classify(value, target, lowTarget float64) types.Status {
	switch {
	case value <= target:
		return types.StatusGreen
	case value <= lowTarget:
		return types.StatusYellow
	default:
		return types.StatusRed
	}
}

func (lowerIsBetter) Covers(value, accepted float64) bool { return value <= accepted }

func (lowerIsBetter) Ordered(target, lowTarget float64) bool { return target <= lowTarget }

type higherIsBetter struct{}

func (higherIsBetter) Name() string { return "higher" }

func (higherIsBetter) Classify(value, target, lowTarget float64) types.Status {
	switch {
	case value >= target:
		return types.StatusGreen
	case value >= lowTarget:
		return types.StatusYellow
	default:
		return types.StatusRed
	}
}

func (higherIsBetter) Covers(value, accepted float64) bool { return value >= accepted }

func (higherIsBetter) Ordered(target, lowTarget float64) bool { return target >= lowTarget }

// DirectionByName returns the Direction for "lower" or "higher".
func DirectionByName(name string) (Direction, bool) {
	switch name {
	case "lower":
		return LowerIsBetter, true
	case "higher":
		return HigherIsBetter, true
	}
	return nil, false
}
