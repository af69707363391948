// Package telemetry exposes the agent's own Prometheus metrics: the status
// and value of every evaluated metric plus pass durations and failures.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obsidianstack/healthboard/pkg/types"
)

const namespace = "healthboard"

const (
	projectLabel = "project"
	metricLabel  = "metric"
	kindLabel    = "kind"
	statusLabel  = "status"
)

// Collector records pass outcomes. It implements report.Observer.
type Collector struct {
	reg *prometheus.Registry

	status   *prometheus.GaugeVec
	value    *prometheus.GaugeVec
	age      *prometheus.GaugeVec
	counts   *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	passes   *prometheus.CounterVec
	failures *prometheus.CounterVec
	last     *prometheus.GaugeVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_status",
			Help:      "1 for the current status of each metric, 0 for the others.",
		}, []string{projectLabel, metricLabel, kindLabel, statusLabel}),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "The numerical value of each metric; absent while the metric is missing.",
		}, []string{projectLabel, metricLabel, kindLabel}),
		age: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_status_age_seconds",
			Help:      "How long each metric has had its current status.",
		}, []string{projectLabel, metricLabel}),
		counts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metrics",
			Help:      "The number of metrics per status in the last pass.",
		}, []string{projectLabel, statusLabel}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "The duration of a reporting pass in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{projectLabel}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "total",
			Help:      "The number of completed reporting passes.",
		}, []string{projectLabel}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurement_failures_total",
			Help:      "Collaborator errors other than absent data.",
		}, []string{projectLabel}),
		last: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time of the last completed pass.",
		}, []string{projectLabel}),
	}
	c.reg.MustRegister(c.status, c.value, c.age, c.counts, c.duration, c.passes, c.failures, c.last)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// ObservePass updates the gauges from rep.
func (c *Collector) ObservePass(rep *types.Report, took time.Duration, failures int) {
	// Metrics removed from the config must not linger.
	c.status.DeletePartialMatch(prometheus.Labels{projectLabel: rep.Project})
	c.value.DeletePartialMatch(prometheus.Labels{projectLabel: rep.Project})
	c.age.DeletePartialMatch(prometheus.Labels{projectLabel: rep.Project})

	for _, m := range rep.Metrics {
		for _, st := range types.AllStatuses {
			v := 0.0
			if st == m.Status {
				v = 1
			}
			c.status.WithLabelValues(rep.Project, m.ID, m.Kind, string(st)).Set(v)
		}
		if !m.Missing {
			c.value.WithLabelValues(rep.Project, m.ID, m.Kind).Set(m.Numerical)
			c.age.WithLabelValues(rep.Project, m.ID).Set(m.AgeSeconds)
		}
	}
	for st, n := range rep.Counts() {
		c.counts.WithLabelValues(rep.Project, string(st)).Set(float64(n))
	}

	c.duration.WithLabelValues(rep.Project).Observe(took.Seconds())
	c.passes.WithLabelValues(rep.Project).Inc()
	c.failures.WithLabelValues(rep.Project).Add(float64(failures))
	c.last.WithLabelValues(rep.Project).Set(float64(rep.GeneratedAt.Unix()))
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// Serve exposes /metrics on port until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("telemetry: listening", "port", port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("telemetry: %w", err)
	}
}
