package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/healthboard/pkg/types"
	"github.com/obsidianstack/healthboard/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = 24 * time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine. Status,
// Missing and Value are the metric's state when the alert fired.
type Alert struct {
	ID         string       `json:"id"`
	RuleName   string       `json:"rule_name"`
	Project    string       `json:"project"`
	MetricID   string       `json:"metric_id"`
	Kind       string       `json:"kind,omitempty"`
	Status     types.Status `json:"status"`
	Missing    bool         `json:"missing,omitempty"`
	URL        string       `json:"url,omitempty"`
	Severity   string       `json:"severity"`
	Message    string       `json:"message"`
	Value      float64      `json:"value"`
	FiredAt    time.Time    `json:"fired_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	State      string       `json:"state"`
}

// Engine evaluates alert rules against incoming reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "rule:project/metric"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	deliverF func(*Alert)
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.deliverF = func(a *Alert) { go e.deliver(a) }
	return e
}

// Evaluate tests all configured rules against every metric of rep.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(rep *types.Report) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range e.rules {
		for _, m := range rep.Metrics {
			if len(rule.Kinds) > 0 && !slices.Contains(rule.Kinds, m.Kind) {
				continue
			}
			fires, value := evalCondition(rule.Condition, m)
			if fires {
				e.fire(rule, rep.Project, m, value, now)
			} else {
				e.resolve(rule, rep.Project, m.ID, now)
			}
		}
	}
}

func alertKey(rule, project, metricID string) string {
	return rule + ":" + project + "/" + metricID
}

func (e *Engine) fire(rule config.AlertRule, project string, m types.MetricReport, value float64, now time.Time) {
	key := alertKey(rule.Name, project, m.ID)
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	e.mu.Lock()
	if last, ok := e.lastFire[key]; ok && now.Sub(last) <= cooldown {
		e.mu.Unlock()
		return
	}
	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	text := m.Text
	if text == "" {
		text = rule.Condition
	}
	a := &Alert{
		ID:       fmt.Sprintf("%s:%d", key, now.UnixNano()),
		RuleName: rule.Name,
		Project:  project,
		MetricID: m.ID,
		Kind:     m.Kind,
		Status:   m.Status,
		Missing:  m.Missing,
		URL:      m.URL,
		Severity: sev,
		Value:    value,
		Message:  fmt.Sprintf("[%s] %s fired on %s/%s (%s): %s", sev, rule.Name, project, m.ID, m.Status, text),
		FiredAt:  now,
		State:    StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now
	alertCopy := *a
	e.mu.Unlock()

	slog.Warn("alerts: fired",
		"rule", rule.Name, "project", project, "metric", m.ID,
		"status", m.Status, "value", value, "severity", sev)
	e.deliverF(&alertCopy)
}

func (e *Engine) resolve(rule config.AlertRule, project, metricID string, now time.Time) {
	key := alertKey(rule.Name, project, metricID)

	e.mu.Lock()
	a, ok := e.active[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	slog.Info("alerts: resolved", "rule", rule.Name, "project", project, "metric", metricID)
	e.deliverF(&alertCopy)
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past day, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}
