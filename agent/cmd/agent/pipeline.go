package main

import (
	"context"
	"fmt"

	"github.com/obsidianstack/healthboard/agent/internal/config"
	"github.com/obsidianstack/healthboard/agent/internal/report"
	"github.com/obsidianstack/healthboard/agent/internal/source"
	"github.com/obsidianstack/healthboard/pkg/history"
)

// openHistory opens the backend selected in cfg.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, error) {
	h, err := history.Open(ctx, history.Config{
		Backend: cfg.Backend,
		Path:    cfg.Path,
		DSN:     cfg.DSN(),
		Recent:  cfg.Recent,
	})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return h, nil
}

// newRunner builds the sources and metrics of cfg.Project.
func newRunner(cfg *config.Config, h history.Store, opts ...report.Option) (*report.Runner, error) {
	sources, err := source.NewSet(cfg.Project.Sources)
	if err != nil {
		return nil, err
	}
	return report.Build(cfg, sources, h, opts...)
}
