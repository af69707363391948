package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/healthboard/agent/internal/metric"
	"github.com/obsidianstack/healthboard/agent/internal/source"
	"github.com/obsidianstack/healthboard/pkg/history"
	"github.com/obsidianstack/healthboard/pkg/types"
)

// Observer is notified after every completed pass.
type Observer interface {
	ObservePass(rep *types.Report, took time.Duration, failures int)
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers o to be notified after each pass.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithPassID replaces the pass ID generator; used by tests.
func WithPassID(f func() string) Option {
	return func(r *Runner) { r.newID = f }
}

// Runner evaluates the configured metrics of one project.
type Runner struct {
	project     string
	leaves      []*metric.Metric
	metas       []*metric.Metric
	history     history.Store
	parallelism int
	observers   []Observer
	newID       func() string
}

// Project returns the project name reports are filed under.
func (r *Runner) Project() string { return r.project }

// Metrics returns the leaf metrics followed by the meta-metrics.
func (r *Runner) Metrics() []*metric.Metric {
	return append(append([]*metric.Metric{}, r.leaves...), r.metas...)
}

// Run performs one pass at now. When the history append fails the report is
// still returned together with the error.
func (r *Runner) Run(ctx context.Context, now time.Time) (*types.Report, error) {
	start := time.Now()
	c := metric.NewCache(now)

	g, gctx := errgroup.WithContext(ctx)
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	for _, m := range r.leaves {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.Evaluate(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("report: pass cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("report: pass cancelled: %w", err)
	}
	for _, m := range r.metas {
		m.Evaluate(ctx, c)
	}

	failures := r.logFailures(c)

	rep := &types.Report{
		Project:     r.project,
		PassID:      r.passID(),
		GeneratedAt: now,
	}
	snap := history.Snapshot{Timestamp: now, Measurements: make(map[string]history.Entry)}
	for _, m := range r.Metrics() {
		ev := m.Evaluate(ctx, c)
		rep.Metrics = append(rep.Metrics, r.metricReport(ctx, c, m, ev))
		snap.Measurements[m.ID()] = history.Entry{Value: ev.Value.Ptr(), Status: ev.Base, Timestamp: now}
	}

	var err error
	if r.history != nil {
		if aerr := r.history.Append(ctx, snap); aerr != nil {
			err = fmt.Errorf("report: append history: %w", aerr)
		}
	}

	took := time.Since(start)
	for _, o := range r.observers {
		o.ObservePass(rep, took, failures)
	}
	slog.Info("report: pass complete",
		"project", r.project, "pass", rep.PassID, "metrics", len(rep.Metrics),
		"failures", failures, "took", took)
	return rep, err
}

func (r *Runner) passID() string {
	if r.newID != nil {
		return r.newID()
	}
	return uuid.NewString()
}

// logFailures logs collaborator errors recorded during the pass and returns
// how many were genuine failures rather than absent data.
func (r *Runner) logFailures(c *metric.Cache) int {
	n := 0
	for id, err := range c.Errors() {
		if errors.Is(err, source.ErrNoData) {
			slog.Debug("report: no data", "metric", id, "err", err)
			continue
		}
		n++
		slog.Warn("report: measurement failed", "metric", id, "err", err)
	}
	return n
}

func (r *Runner) metricReport(ctx context.Context, c *metric.Cache, m *metric.Metric, ev metric.Evaluation) types.MetricReport {
	spec := m.Spec()
	lo, hi := m.YAxisRange(ctx)
	return types.MetricReport{
		ID:          m.ID(),
		Kind:        spec.Kind,
		Name:        spec.Name,
		SubjectID:   m.Subject().ID,
		SubjectName: m.Subject().Name,
		Status:      ev.Status,
		Value:       ev.Value.Ptr(),
		Numerical:   ev.Numerical,
		Missing:     ev.Missing,
		Escalated:   ev.Escalated,
		Text:        m.Report(ctx, c),
		Norm:        m.Norm(),
		Comment:     m.Comment(),
		URL:         m.URL(),
		AgeSeconds:  ev.Age.Seconds(),
		YAxisMin:    lo,
		YAxisMax:    hi,
		Meta:        m.IsMeta(),
	}
}
