package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/healthboard/agent/internal/config"
	"github.com/obsidianstack/healthboard/agent/internal/report"
	"github.com/obsidianstack/healthboard/agent/internal/shipper"
	"github.com/obsidianstack/healthboard/agent/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate the metrics every interval and ship the reports",
	Long: `Run a reporting pass immediately and then every agent.interval.

Changes to the config file are picked up without a restart: sources,
metrics and the interval are rebuilt. The history backend, server
endpoint and telemetry port need a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return run(ctx, configPath)
	},
}

type reload struct {
	runner   *report.Runner
	interval time.Duration
}

func run(ctx context.Context, path string) error {
	slog.Info("healthboard-agent starting", "config", path)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"project", cfg.Project.Name,
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Project.Sources),
		"metrics", len(cfg.Project.Metrics),
		"interval", cfg.Agent.Interval,
	)

	h, err := openHistory(ctx, cfg.Agent.History)
	if err != nil {
		return err
	}
	defer h.Close()

	tel := telemetry.New()
	runner, err := newRunner(cfg, h, report.WithObserver(tel))
	if err != nil {
		return err
	}

	if cfg.Agent.TelemetryPort > 0 {
		go func() {
			if err := tel.Serve(ctx, cfg.Agent.TelemetryPort); err != nil {
				slog.Error("telemetry server stopped", "err", err)
			}
		}()
	}

	var ship *shipper.Shipper
	if cfg.Agent.ServerEndpoint != "" {
		if ship, err = shipper.New(cfg.Agent); err != nil {
			return err
		}
		go ship.Run(ctx)
	} else {
		slog.Warn("no server_endpoint configured, reports are only logged")
	}

	reloads := make(chan reload, 1)
	go func() {
		if err := config.Watch(ctx, path, func(updated *config.Config) {
			r, err := newRunner(updated, h, report.WithObserver(tel))
			if err != nil {
				slog.Error("config reload rejected, keeping previous metrics", "err", err)
				return
			}
			// Only the newest reload matters.
			select {
			case <-reloads:
			default:
			}
			reloads <- reload{runner: r, interval: updated.Agent.Interval}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	pass := func(now time.Time) {
		rep, err := runner.Run(ctx, now)
		if err != nil {
			slog.Error("reporting pass failed", "err", err)
		}
		if rep != nil && ship != nil {
			ship.Ship(rep)
		}
	}

	pass(time.Now())
	interval := cfg.Agent.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("healthboard-agent shutting down")
			return nil

		case rl := <-reloads:
			runner = rl.runner
			if rl.interval > 0 && rl.interval != interval {
				interval = rl.interval
				ticker.Reset(interval)
			}
			slog.Info("config hot-reloaded",
				"project", runner.Project(), "metrics", len(runner.Metrics()), "interval", interval)

		case t := <-ticker.C:
			pass(t)
		}
	}
}
