package history

import (
	"context"
	"sync"
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu     sync.RWMutex
	snaps  []Snapshot
	index  map[string][]Entry
	recent int
}

// NewMemory creates an empty Memory store. recent is the default window for
// RecentValues; non-positive means DefaultRecent.
func NewMemory(recent int) *Memory {
	return &Memory{
		index:  make(map[string][]Entry),
		recent: recent,
	}
}

// Append stores snap. It returns ErrOutOfOrder if snap is older than the
// latest stored snapshot.
func (m *Memory) Append(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(snap)
}

func (m *Memory) appendLocked(snap Snapshot) error {
	if n := len(m.snaps); n > 0 && snap.Timestamp.Before(m.snaps[n-1].Timestamp) {
		return ErrOutOfOrder
	}
	cp := Snapshot{Timestamp: snap.Timestamp, Measurements: make(map[string]Entry, len(snap.Measurements))}
	for id, e := range snap.Measurements {
		cp.Measurements[id] = e
		m.index[id] = append(m.index[id], e)
	}
	m.snaps = append(m.snaps, cp)
	return nil
}

// Record stores one measurement, merging it into the latest snapshot when the
// timestamps are equal.
func (m *Memory) Record(_ context.Context, metricID string, value *float64, status types.Status, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := Entry{Value: value, Status: status, Timestamp: ts}
	if n := len(m.snaps); n > 0 && m.snaps[n-1].Timestamp.Equal(ts) {
		if _, dup := m.snaps[n-1].Measurements[metricID]; !dup {
			m.snaps[n-1].Measurements[metricID] = e
			m.index[metricID] = append(m.index[metricID], e)
			return nil
		}
	}
	return m.appendLocked(Snapshot{Timestamp: ts, Measurements: map[string]Entry{metricID: e}})
}

// mergeTarget returns a copy of the latest snapshot when a measurement of
// metricID at ts would be merged into it by Record.
func (m *Memory) mergeTarget(metricID string, ts time.Time) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.snaps)
	if n == 0 || !m.snaps[n-1].Timestamp.Equal(ts) {
		return Snapshot{}, false
	}
	last := m.snaps[n-1]
	if _, dup := last.Measurements[metricID]; dup {
		return Snapshot{}, false
	}
	cp := Snapshot{Timestamp: last.Timestamp, Measurements: make(map[string]Entry, len(last.Measurements)+1)}
	for id, e := range last.Measurements {
		cp.Measurements[id] = e
	}
	return cp, true
}

// Entries returns a copy of all entries for metricID, oldest first.
func (m *Memory) Entries(_ context.Context, metricID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.index[metricID]
	out := make([]Entry, len(src))
	copy(out, src)
	return out, nil
}

// RecentValues returns the last window values for metricID.
func (m *Memory) RecentValues(_ context.Context, metricID string, window int) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return recentValues(m.index[metricID], windowOr(window, m.recent)), nil
}

// StatusStartDate implements Reader.
func (m *Memory) StatusStartDate(_ context.Context, metricID string, current types.Status, now time.Time) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return statusStart(m.index[metricID], current, now), nil
}

// Len returns the number of stored snapshots.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snaps)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
