package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// DefaultRecent is the number of entries per metric returned by RecentValues
// when the caller passes a non-positive window.
const DefaultRecent = 250

// ErrOutOfOrder is returned when a snapshot is older than the latest one
// already stored.
var ErrOutOfOrder = errors.New("history: snapshot older than latest entry")

// Entry is one recorded measurement of one metric.
type Entry struct {
	// Value is nil when the measurement was missing.
	Value     *float64
	Status    types.Status
	Timestamp time.Time
}

// Timestamped reports whether the entry carries a status and a timestamp.
// Legacy value-only entries do not, and they stop StatusStartDate's walk.
func (e Entry) Timestamped() bool {
	return e.Status != "" && !e.Timestamp.IsZero()
}

// Snapshot is everything recorded by one reporting pass.
type Snapshot struct {
	Timestamp    time.Time
	Measurements map[string]Entry
}

// Reader is the read side of the history used during a reporting pass.
type Reader interface {
	// Entries returns all entries for metricID, oldest first.
	Entries(ctx context.Context, metricID string) ([]Entry, error)

	// RecentValues returns the values of the last window entries for
	// metricID, oldest first. Missing values are skipped.
	RecentValues(ctx context.Context, metricID string, window int) ([]float64, error)

	// StatusStartDate returns the time the metric started carrying current.
	// It returns now when the metric has no entries or its latest recorded
	// status differs, and the zero time when the latest entry is untimestamped.
	StatusStartDate(ctx context.Context, metricID string, current types.Status, now time.Time) (time.Time, error)
}

// Store is a Reader that can also be appended to.
type Store interface {
	Reader

	// Append stores a complete pass snapshot.
	Append(ctx context.Context, snap Snapshot) error

	// Record stores a single measurement. Measurements sharing a timestamp
	// with the latest snapshot are merged into it.
	Record(ctx context.Context, metricID string, value *float64, status types.Status, ts time.Time) error

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of: memory | file | postgres.
	Backend string
	// Path is the history file for the file backend.
	Path string
	// DSN is the connection string for the postgres backend.
	DSN string
	// Recent is the default RecentValues window.
	Recent int
}

// Open returns the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(cfg.Recent), nil
	case "file":
		return NewFile(cfg.Path, cfg.Recent)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN, cfg.Recent)
	default:
		return nil, fmt.Errorf("history: unsupported backend %q", cfg.Backend)
	}
}

// statusStart walks entries backward and returns the start of the streak of
// current ending at the latest entry.
func statusStart(entries []Entry, current types.Status, now time.Time) time.Time {
	if len(entries) == 0 {
		return now
	}
	last := entries[len(entries)-1]
	if !last.Timestamped() {
		return time.Time{}
	}
	if last.Status != current {
		return now
	}
	start := last.Timestamp
	for i := len(entries) - 2; i >= 0; i-- {
		e := entries[i]
		if !e.Timestamped() || e.Status != current {
			break
		}
		start = e.Timestamp
	}
	return start
}

// recentValues returns the non-missing values among the last window entries.
func recentValues(entries []Entry, window int) []float64 {
	if window > 0 && len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	out := make([]float64, 0, len(entries))
	for _, e := range entries {
		if e.Value != nil {
			out = append(out, *e.Value)
		}
	}
	return out
}

func windowOr(window, fallback int) int {
	if window > 0 {
		return window
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultRecent
}
