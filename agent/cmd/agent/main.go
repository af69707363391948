package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "healthboard-agent",
	Short: "Measure project health metrics and report them to healthboard-server",
	Long: `healthboard-agent evaluates the metrics configured for a project, keeps
their history and ships a report per pass to healthboard-server.

Examples:
  # Run continuously with the configured interval
  healthboard-agent run --config config.yaml

  # Evaluate once and print the statuses
  healthboard-agent once --config config.yaml

  # List the metric kinds the agent knows
  healthboard-agent kinds`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel, logFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug | info | warn | error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "json | text")
	rootCmd.AddCommand(runCmd, onceCmd, kindsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid --log-format %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}
