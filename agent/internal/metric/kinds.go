package metric

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// UnitVersion marks metrics whose values are version numbers encoded as
// a*1e6+b*1e3+c; they are rendered back as "a.b.c".
const UnitVersion = "version"

const day = 24 * time.Hour

// Leaf metric kinds.
const (
	KindFailingUnittests       = "failing_unittests"
	KindDuplication            = "duplication"
	KindOpenBugs               = "open_bugs"
	KindFailingCIJobs          = "failing_ci_jobs"
	KindUnusedCIJobs           = "unused_ci_jobs"
	KindTeamSpirit             = "team_spirit"
	KindToolVersion            = "tool_version"
	KindResponseTimeViolations = "response_time_violations"
	KindCertificateExpiry      = "certificate_expiry"
)

// Meta-metric kinds.
const (
	KindPercentGreen  = "percent_green"
	KindPercentRed    = "percent_red"
	KindPercentYellow = "percent_yellow"
	KindPercentGrey   = "percent_grey"
)

var kinds = map[string]Spec{
	KindFailingUnittests: {
		Kind:            KindFailingUnittests,
		Name:            "Failing unit tests",
		Direction:       LowerIsBetter,
		Template:        "{value} unit tests of {subject} fail.",
		PerfectTemplate: "All unit tests of {subject} pass.",
		MissingTemplate: "The unit test results of {subject} are unavailable.",
		NormTemplate:    "All unit tests pass. One or more failing unit tests is red.",
	},
	KindDuplication: {
		Kind:       KindDuplication,
		Name:       "Duplication",
		Unit:       "%",
		Direction:  LowerIsBetter,
		Percentage: true,
		Target:     5,
		LowTarget:  10,
		Template:   "{subject} has {value}% duplicated lines ({numerator} of {denominator} lines).",
	},
	KindOpenBugs: {
		Kind:      KindOpenBugs,
		Name:      "Open bugs",
		Unit:      "bugs",
		Direction: LowerIsBetter,
		Target:    5,
		LowTarget: 10,
		Template:  "{subject} has {value} open bugs.",
	},
	KindFailingCIJobs: {
		Kind:            KindFailingCIJobs,
		Name:            "Failing CI jobs",
		Unit:            "jobs",
		Direction:       LowerIsBetter,
		LowTarget:       2,
		Template:        "{value} CI jobs of {subject} fail.",
		PerfectTemplate: "No CI jobs of {subject} fail.",
	},
	KindUnusedCIJobs: {
		Kind:            KindUnusedCIJobs,
		Name:            "Unused CI jobs",
		Unit:            "jobs",
		Direction:       LowerIsBetter,
		LowTarget:       2,
		Template:        "{value} CI jobs of {subject} have not run recently.",
		PerfectTemplate: "All CI jobs of {subject} ran recently.",
	},
	KindTeamSpirit: {
		Kind:            KindTeamSpirit,
		Name:            "Team spirit",
		Direction:       HigherIsBetter,
		Perfect:         2,
		Target:          1,
		LowTarget:       1,
		OldAge:          21 * day,
		MaxOldAge:       42 * day,
		YAxis:           [2]float64{0, 2},
		Template:        "The spirit of team {subject} is {value} out of 2.",
		MissingTemplate: "The spirit of team {subject} has not been recorded.",
		NormTemplate: "The team picks a smiley for its spirit. :-) is perfect, :-| is green, :-( is red." +
			staleNormTemplate,
	},
	KindToolVersion: {
		Kind:         KindToolVersion,
		Name:         "Tool version",
		Unit:         UnitVersion,
		Direction:    HigherIsBetter,
		Perfect:      999_999_999,
		Target:       4_005_006,
		LowTarget:    4_005_004,
		Template:     "{subject} runs version {value}.",
		NormTemplate: "{subject} runs at least version {target}, lower than version {low_target} is red.",
	},
	KindResponseTimeViolations: {
		Kind:            KindResponseTimeViolations,
		Name:            "Response time violations",
		Unit:            "queries",
		Direction:       LowerIsBetter,
		LowTarget:       3,
		OldAge:          7 * day,
		MaxOldAge:       14 * day,
		Template:        "{value} queries of {subject} exceed the wanted response time.",
		PerfectTemplate: "All queries of {subject} respond within the wanted response time.",
	},
	KindCertificateExpiry: {
		Kind:            KindCertificateExpiry,
		Name:            "Certificate expiry",
		Unit:            "days",
		Direction:       HigherIsBetter,
		Perfect:         999_999_999,
		Target:          30,
		LowTarget:       7,
		Template:        "The certificate of {subject} expires in {value} days.",
		MissingTemplate: "The certificate of {subject} could not be checked.",
		NormTemplate:    "The certificate expires in {target} days or more. Less than {low_target} days is red.",
	},
}

// MetaKind is a meta-metric catalogue entry.
type MetaKind struct {
	Spec     Spec
	Matching []types.Status
}

func metaSpec(kind, name, word string, dir Direction, target, low float64) Spec {
	spec := Spec{
		Kind:       kind,
		Name:       name,
		Unit:       "%",
		Direction:  dir,
		Percentage: true,
		Target:     target,
		LowTarget:  low,
		Template:   "{value}% of the metrics ({numerator} of {denominator}) score " + word + ".",
	}
	if dir == HigherIsBetter {
		spec.Perfect = 100
		spec.NormTemplate = "At least {target}% of the metrics score " + word + ". Less than {low_target}% is red."
	} else {
		spec.NormTemplate = "At most {target}% of the metrics score " + word + ". More than {low_target}% is red."
	}
	return spec
}

var metaKinds = map[string]MetaKind{
	KindPercentGreen: {
		Spec:     metaSpec(KindPercentGreen, "Metrics green", "green", HigherIsBetter, 90, 80),
		Matching: []types.Status{types.StatusGreen, types.StatusPerfect},
	},
	KindPercentRed: {
		Spec:     metaSpec(KindPercentRed, "Metrics red", "red", LowerIsBetter, 2, 5),
		Matching: []types.Status{types.StatusRed},
	},
	KindPercentYellow: {
		Spec:     metaSpec(KindPercentYellow, "Metrics yellow", "yellow", LowerIsBetter, 5, 10),
		Matching: []types.Status{types.StatusYellow},
	},
	KindPercentGrey: {
		Spec:     metaSpec(KindPercentGrey, "Metrics grey", "grey", LowerIsBetter, 2, 5),
		Matching: []types.Status{types.StatusGrey},
	},
}

// Lookup returns the Spec of a leaf metric kind.
func Lookup(kind string) (Spec, bool) {
	s, ok := kinds[kind]
	return s, ok
}

// LookupMeta returns the catalogue entry of a meta-metric kind.
func LookupMeta(kind string) (MetaKind, bool) {
	mk, ok := metaKinds[kind]
	return mk, ok
}

// Kinds lists the leaf metric kinds, sorted.
func Kinds() []string {
	out := lo.Keys(kinds)
	sort.Strings(out)
	return out
}

// MetaKinds lists the meta-metric kinds, sorted.
func MetaKinds() []string {
	out := lo.Keys(metaKinds)
	sort.Strings(out)
	return out
}
