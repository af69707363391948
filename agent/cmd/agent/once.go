package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/obsidianstack/healthboard/agent/internal/config"
	"github.com/obsidianstack/healthboard/pkg/history"
	"github.com/obsidianstack/healthboard/pkg/types"
)

var (
	onceJSON   bool
	onceDryRun bool
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single reporting pass and print the statuses",
	Long: `Evaluate every configured metric once and print the result.

With --dry-run the pass is not recorded in the history, so staleness is
judged as if the metrics had never been measured before.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		var h history.Store
		if onceDryRun {
			h = history.NewMemory(cfg.Agent.History.Recent)
		} else if h, err = openHistory(ctx, cfg.Agent.History); err != nil {
			return err
		}
		defer h.Close()

		runner, err := newRunner(cfg, h)
		if err != nil {
			return err
		}
		rep, err := runner.Run(ctx, time.Now())
		if rep == nil {
			return err
		}
		if onceJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if jerr := enc.Encode(rep); jerr != nil {
				return jerr
			}
		} else {
			printReport(os.Stdout, rep)
		}
		return err
	},
}

func init() {
	onceCmd.Flags().BoolVar(&onceJSON, "json", false, "print the report as JSON")
	onceCmd.Flags().BoolVar(&onceDryRun, "dry-run", false, "do not record the pass in the history")
}

var statusColors = map[types.Status]*color.Color{
	types.StatusPerfect: color.New(color.FgHiGreen, color.Bold),
	types.StatusGreen:   color.New(color.FgGreen),
	types.StatusYellow:  color.New(color.FgYellow),
	types.StatusRed:     color.New(color.FgRed),
	types.StatusGrey:    color.New(color.FgHiBlack),
}

func printReport(w io.Writer, rep *types.Report) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan(fmt.Sprintf("=== %s ===", rep.Project)))

	for _, meta := range []bool{false, true} {
		for _, m := range rep.Metrics {
			if m.Meta != meta {
				continue
			}
			paint := statusColors[m.Status].SprintFunc()
			marker := ""
			if m.Escalated {
				marker = " (stale)"
			}
			fmt.Fprintf(w, "  %s %-40s %s\n", paint(fmt.Sprintf("%-8s", m.Status)), m.ID, m.Text+marker)
			if m.Comment != "" {
				fmt.Fprintf(w, "  %8s %-40s %s\n", "", "", gray(m.Comment))
			}
		}
		fmt.Fprintln(w)
	}

	counts := rep.Counts()
	statuses := make([]types.Status, 0, len(counts))
	for st := range counts {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return types.Severity(statuses[i]) < types.Severity(statuses[j]) })
	fmt.Fprint(w, "  Total:")
	for _, st := range statuses {
		if counts[st] == 0 {
			continue
		}
		fmt.Fprintf(w, " %s", statusColors[st].Sprintf("%d %s", counts[st], st))
	}
	fmt.Fprintf(w, "\n  %s\n\n", gray("pass "+rep.PassID+" at "+rep.GeneratedAt.Format("2006-01-02 15:04:05")))
}
