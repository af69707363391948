package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/obsidianstack/healthboard/agent/internal/metric"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the metric kinds and their default thresholds",
	Run: func(cmd *cobra.Command, args []string) {
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Fprintf(os.Stdout, "%s\n", yellow("Metric kinds:"))
		for _, kind := range metric.Kinds() {
			spec, _ := metric.Lookup(kind)
			printKind(spec)
		}
		fmt.Fprintf(os.Stdout, "\n%s\n", yellow("Meta-metric kinds:"))
		for _, kind := range metric.MetaKinds() {
			mk, _ := metric.LookupMeta(kind)
			printKind(mk.Spec)
		}
	},
}

func printKind(spec metric.Spec) {
	fmt.Fprintf(os.Stdout, "  %-26s %-26s %-6s target %-10s low %-10s",
		spec.Kind, spec.Name, spec.Direction.Name(), format(spec, spec.Target), format(spec, spec.LowTarget))
	if spec.OldAge > 0 {
		fmt.Fprintf(os.Stdout, " stale after %s", spec.OldAge)
	}
	fmt.Fprintln(os.Stdout)
}

func format(spec metric.Spec, n float64) string {
	if spec.Unit == metric.UnitVersion {
		return metric.FormatVersion(n)
	}
	return fmt.Sprintf("%g%s", n, spec.Unit)
}
