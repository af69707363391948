package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/obsidianstack/healthboard/pkg/history"
	"github.com/obsidianstack/healthboard/pkg/types"
	"github.com/obsidianstack/healthboard/server/internal/store"
)

const maxBodyBytes = 8 << 20

// Evaluator is notified of every accepted report; implemented by alerts.Engine.
type Evaluator interface {
	Evaluate(rep *types.Report)
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithHistory records every accepted report in h.
func WithHistory(h history.Store) Option {
	return func(r *Receiver) { r.history = h }
}

// WithEvaluator passes every accepted report to e.
func WithEvaluator(e Evaluator) Option {
	return func(r *Receiver) { r.evaluators = append(r.evaluators, e) }
}

// Receiver validates incoming reports and stores them.
type Receiver struct {
	store      *store.Store
	history    history.Store
	evaluators []Evaluator
}

// New creates a Receiver that writes accepted reports to st.
func New(st *store.Store, opts ...Option) *Receiver {
	r := &Receiver{store: st}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ServeHTTP handles POST /api/v1/reports.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var rep types.Report
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(&rep); err != nil {
		writeError(w, http.StatusBadRequest, "decode report: "+err.Error())
		return
	}
	if err := validate(&rep); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !r.store.Put(&rep) {
		slog.Info("receiver: ignored report older than the stored one",
			"project", rep.Project, "pass", rep.PassID, "generated_at", rep.GeneratedAt)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stored": false})
		return
	}

	if r.history != nil {
		if err := r.history.Append(req.Context(), snapshot(&rep)); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, history.ErrOutOfOrder) {
				level = slog.LevelDebug
			}
			slog.Log(req.Context(), level, "receiver: history not recorded", "project", rep.Project, "err", err)
		}
	}
	for _, e := range r.evaluators {
		e.Evaluate(&rep)
	}

	slog.Debug("receiver: report stored",
		"project", rep.Project,
		"pass", rep.PassID,
		"metrics", len(rep.Metrics),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "stored": true})
}

func validate(rep *types.Report) error {
	if rep.Project == "" {
		return errors.New("project is required")
	}
	if rep.GeneratedAt.IsZero() {
		return errors.New("generated_at is required")
	}
	for i, m := range rep.Metrics {
		if m.ID == "" {
			return fmt.Errorf("metrics[%d]: id is required", i)
		}
		if !m.Status.Valid() {
			return fmt.Errorf("metrics[%d] %s: unknown status %q", i, m.ID, m.Status)
		}
	}
	return nil
}

// snapshot keys the report's measurements by project so several projects can
// share one history.
func snapshot(rep *types.Report) history.Snapshot {
	snap := history.Snapshot{Timestamp: rep.GeneratedAt, Measurements: make(map[string]history.Entry, len(rep.Metrics))}
	for _, m := range rep.Metrics {
		snap.Measurements[store.HistoryKey(rep.Project, m.ID)] = history.Entry{
			Value:     m.Value,
			Status:    m.Status,
			Timestamp: rep.GeneratedAt,
		}
	}
	return snap
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
