package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// Entry is a report together with the time it was received.
type Entry struct {
	Report    *types.Report
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory report store, keyed by project.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores rep as the latest report of rep.Project. A report generated
// before the stored one is ignored and Put returns false; agents may deliver
// out of order after a retry.
// Callers must not modify rep after calling Put.
func (s *Store) Put(rep *types.Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.data[rep.Project]; ok && rep.GeneratedAt.Before(cur.Report.GeneratedAt) {
		return false
	}
	s.data[rep.Project] = &Entry{
		Report:    rep,
		UpdatedAt: s.now(),
	}
	return true
}

// Get returns the Entry for project and whether one was found. The entry may
// be stale if TTL has elapsed.
func (s *Store) Get(project string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[project]
	return e, ok
}

// List returns the entries whose UpdatedAt is within the TTL, sorted by
// project. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Report.Project < out[j].Report.Project })
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Info("store: evicted projects that stopped reporting", "count", n)
			}
		}
	}
}

// HistoryKey is the history metric ID of metricID within project.
func HistoryKey(project, metricID string) string {
	return project + "/" + metricID
}
