package metric

import (
	"errors"
	"fmt"
	"time"
)

// Contract violations returned by the constructors.
var (
	// ErrNoValueSource is returned when a metric has neither a Source nor a Ratio.
	ErrNoValueSource = errors.New("metric: no value source")
	// ErrThresholdOrder is returned when target and low target contradict the direction.
	ErrThresholdOrder = errors.New("metric: target and low target out of order")
	// ErrNestedMeta is returned when a meta-metric is given another meta-metric as member.
	ErrNestedMeta = errors.New("metric: meta-metric cannot aggregate meta-metrics")
)

// ZeroPolicy decides the value of a higher-is-better percentage whose
// denominator is zero. Lower-is-better percentages always yield 0.
type ZeroPolicy int

const (
	// ZeroAsZero reports 0%, which is red under the usual thresholds.
	ZeroAsZero ZeroPolicy = iota
	// ZeroAsMissing reports the metric as missing.
	ZeroAsMissing
)

// Spec is the immutable per-kind configuration of a metric.
type Spec struct {
	Kind      string
	Name      string
	Unit      string
	Direction Direction
	// Percentage marks kinds whose value comes from a Ratio.
	Percentage bool

	Target    float64
	LowTarget float64
	Perfect   float64

	// OldAge and MaxOldAge bound the age of the current status before it
	// escalates to yellow and red. Zero means never stale.
	OldAge    time.Duration
	MaxOldAge time.Duration

	ZeroDenominator ZeroPolicy

	// YAxis, when non-zero, fixes the chart range regardless of history.
	YAxis [2]float64

	// Report text. Placeholders: {value} {target} {low_target} {unit}
	// {numerator} {denominator} {subject} {name} {old_age} {max_old_age}.
	Template        string
	PerfectTemplate string
	MissingTemplate string
	NormTemplate    string
}

// Validate checks the threshold ordering against the direction.
func (s Spec) Validate() error {
	if s.Direction == nil {
		return fmt.Errorf("metric: %s: no direction", s.Kind)
	}
	if !s.Direction.Ordered(s.Target, s.LowTarget) {
		return fmt.Errorf("%w: %s is %s-is-better with target %v and low target %v",
			ErrThresholdOrder, s.Kind, s.Direction.Name(), s.Target, s.LowTarget)
	}
	if s.MaxOldAge > 0 && s.OldAge > s.MaxOldAge {
		return fmt.Errorf("metric: %s: old age %s exceeds max old age %s", s.Kind, s.OldAge, s.MaxOldAge)
	}
	return nil
}

// WithTargets returns a copy of s with the thresholds replaced by the non-nil
// overrides.
func (s Spec) WithTargets(target, lowTarget *float64) Spec {
	if target != nil {
		s.Target = *target
	}
	if lowTarget != nil {
		s.LowTarget = *lowTarget
	}
	return s
}

func (s Spec) hasFixedYAxis() bool { return s.YAxis != [2]float64{} }

func (s Spec) stalenessEnabled() bool { return s.OldAge > 0 || s.MaxOldAge > 0 }
