package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// TimeLayout is the timestamp layout used in history files.
const TimeLayout = "2006-01-02 15:04:05"

const dateKey = "date"

// File is a Store persisted as one JSON object per line. Each line maps metric
// IDs to either a bare number (legacy, value only) or a
// [value, status, "YYYY-MM-DD HH:MM:SS"] triple, plus a "date" key holding
// the snapshot timestamp. Tuples shorter than three elements are read as
// untimestamped. Lines appended by another process are picked up on the next
// read.
type File struct {
	path string

	mu     sync.Mutex
	mem    *Memory
	size   int64
	recent int
	// lastLine is the offset of the last non-empty line, rewritten when
	// Record merges into the latest snapshot.
	lastLine int64
}

// NewFile opens (creating if needed) the history file at path and loads it.
func NewFile(path string, recent int) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("history: file backend requires a path")
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	f.Close()

	h := &File{path: path, recent: recent}
	if err := h.reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// reload re-reads the file if its size changed since the last load.
// Caller must hold h.mu or be the constructor.
func (h *File) reload() error {
	fi, err := os.Stat(h.path)
	if err != nil {
		return fmt.Errorf("history: stat %s: %w", h.path, err)
	}
	if h.mem != nil && fi.Size() == h.size {
		return nil
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("history: read %s: %w", h.path, err)
	}

	mem := NewMemory(h.recent)
	var off, lastLine int64
	for lineNo := 1; off < int64(len(data)); lineNo++ {
		rest := data[off:]
		end := bytes.IndexByte(rest, '\n')
		if end < 0 {
			end = len(rest) - 1
		}
		line := bytes.TrimSpace(rest[:end+1])
		if len(line) > 0 {
			snap, err := decodeLine(line)
			if err != nil {
				return fmt.Errorf("history: %s line %d: %w", h.path, lineNo, err)
			}
			mem.load(snap)
			lastLine = off
		}
		off += int64(end + 1)
	}
	h.mem = mem
	h.size = int64(len(data))
	h.lastLine = lastLine
	return nil
}

// Append writes snap as a new line and indexes it.
func (h *File) Append(ctx context.Context, snap Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.reload(); err != nil {
		return err
	}
	return h.appendLocked(ctx, snap)
}

func (h *File) appendLocked(ctx context.Context, snap Snapshot) error {
	if n := len(h.mem.snaps); n > 0 && snap.Timestamp.Before(h.mem.snaps[n-1].Timestamp) {
		return ErrOutOfOrder
	}

	line, err := encodeLine(snap)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("history: open %s: %w", h.path, err)
	}
	defer f.Close()
	n, err := f.Write(append(line, '\n'))
	if err != nil {
		return fmt.Errorf("history: write %s: %w", h.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("history: sync %s: %w", h.path, err)
	}
	h.lastLine = h.size
	h.size += int64(n)
	return h.mem.Append(ctx, snap)
}

// Record stores one measurement. When the latest snapshot has the same
// timestamp and no entry for metricID, its line is rewritten with the
// measurement added; otherwise a new line is appended.
func (h *File) Record(ctx context.Context, metricID string, value *float64, status types.Status, ts time.Time) error {
	e := Entry{Value: value, Status: status, Timestamp: ts}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.reload(); err != nil {
		return err
	}
	latest, ok := h.mem.mergeTarget(metricID, ts)
	if !ok {
		return h.appendLocked(ctx, Snapshot{Timestamp: ts, Measurements: map[string]Entry{metricID: e}})
	}

	latest.Measurements[metricID] = e
	line, err := encodeLine(latest)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open %s: %w", h.path, err)
	}
	defer f.Close()
	if err := f.Truncate(h.lastLine); err != nil {
		return fmt.Errorf("history: truncate %s: %w", h.path, err)
	}
	n, err := f.WriteAt(append(line, '\n'), h.lastLine)
	if err != nil {
		return fmt.Errorf("history: write %s: %w", h.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("history: sync %s: %w", h.path, err)
	}
	h.size = h.lastLine + int64(n)
	return h.mem.Record(ctx, metricID, value, status, ts)
}

func (h *File) current() (*Memory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.reload(); err != nil {
		return nil, err
	}
	return h.mem, nil
}

// Entries implements Reader.
func (h *File) Entries(ctx context.Context, metricID string) ([]Entry, error) {
	mem, err := h.current()
	if err != nil {
		return nil, err
	}
	return mem.Entries(ctx, metricID)
}

// RecentValues implements Reader.
func (h *File) RecentValues(ctx context.Context, metricID string, window int) ([]float64, error) {
	mem, err := h.current()
	if err != nil {
		return nil, err
	}
	return mem.RecentValues(ctx, metricID, window)
}

// StatusStartDate implements Reader.
func (h *File) StatusStartDate(ctx context.Context, metricID string, current types.Status, now time.Time) (time.Time, error) {
	mem, err := h.current()
	if err != nil {
		return time.Time{}, err
	}
	return mem.StatusStartDate(ctx, metricID, current, now)
}

// Close is a no-op; the file is opened per write.
func (h *File) Close() error { return nil }

// load appends snap without the ordering check; legacy lines carry no date.
func (m *Memory) load(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	for id, e := range snap.Measurements {
		m.index[id] = append(m.index[id], e)
	}
}

func encodeLine(snap Snapshot) ([]byte, error) {
	obj := make(map[string]any, len(snap.Measurements)+1)
	obj[dateKey] = snap.Timestamp.UTC().Format(TimeLayout)
	for id, e := range snap.Measurements {
		if id == dateKey {
			return nil, fmt.Errorf("history: metric id %q is reserved", dateKey)
		}
		if e.Status == "" {
			obj[id] = e.Value
			continue
		}
		ts := e.Timestamp
		if ts.IsZero() {
			ts = snap.Timestamp
		}
		obj[id] = []any{e.Value, string(e.Status), ts.UTC().Format(TimeLayout)}
	}
	return json.Marshal(obj)
}

func decodeLine(line []byte) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Measurements: make(map[string]Entry, len(raw))}
	for key, msg := range raw {
		if key == dateKey {
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return Snapshot{}, fmt.Errorf("date: %w", err)
			}
			ts, err := parseTime(s)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Timestamp = ts
			continue
		}
		e, err := decodeEntry(msg)
		if err != nil {
			return Snapshot{}, fmt.Errorf("metric %s: %w", key, err)
		}
		snap.Measurements[key] = e
	}
	return snap, nil
}

func decodeEntry(msg json.RawMessage) (Entry, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) > 0 && msg[0] != '[' {
		var v *float64
		if err := json.Unmarshal(msg, &v); err != nil {
			return Entry{}, err
		}
		return Entry{Value: v}, nil
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal(msg, &tuple); err != nil {
		return Entry{}, err
	}
	if len(tuple) == 0 {
		return Entry{}, fmt.Errorf("empty measurement")
	}
	// [value] and [value, status] lines predate timestamps; they decode as
	// untimestamped entries.
	var e Entry
	if err := json.Unmarshal(tuple[0], &e.Value); err != nil {
		return Entry{}, fmt.Errorf("value: %w", err)
	}
	if len(tuple) >= 2 {
		var status string
		if err := json.Unmarshal(tuple[1], &status); err != nil {
			return Entry{}, fmt.Errorf("status: %w", err)
		}
		st, err := types.ParseStatus(status)
		if err != nil {
			return Entry{}, err
		}
		e.Status = st
	}
	if len(tuple) >= 3 {
		var date string
		if err := json.Unmarshal(tuple[2], &date); err != nil {
			return Entry{}, fmt.Errorf("date: %w", err)
		}
		ts, err := parseTime(date)
		if err != nil {
			return Entry{}, err
		}
		e.Timestamp = ts
	}
	return e, nil
}

// parseTime accepts the history layout with or without fractional seconds.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, "2006-01-02 15:04:05.999999999", time.RFC3339Nano} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
