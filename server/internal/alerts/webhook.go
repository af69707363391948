package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// deliver posts a to every configured webhook. Failures are logged only.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		body, err := payload(wh.Type, a)
		if err != nil {
			slog.Warn("alerts: skipping webhook", "type", wh.Type, "err", err)
			continue
		}
		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "project", a.Project, "metric", a.MetricID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type, "rule", a.RuleName, "metric", a.MetricID, "state", a.State)
	}
}

// payload renders a for the given webhook type.
func payload(kind string, a *Alert) ([]byte, error) {
	switch kind {
	case "slack":
		return json.Marshal(slackPayload(a))
	case "teams":
		return json.Marshal(teamsPayload(a))
	case "http":
		return json.Marshal(map[string]any{"event": "alert." + a.State, "alert": a})
	default:
		return nil, fmt.Errorf("unknown webhook type %q", kind)
	}
}

// headline is the one-line summary shared by the chat payloads.
func headline(a *Alert) string {
	return fmt.Sprintf("%s %s: %s/%s is %s", stateLabel(a.State), a.RuleName, a.Project, a.MetricID, a.Status)
}

// measured renders the alert value, or "missing" when there was no measurement.
func measured(a *Alert) string {
	if a.Missing {
		return "missing"
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}

func slackPayload(a *Alert) map[string]any {
	text := fmt.Sprintf("*%s* %s", severityLabel(a.Severity), headline(a))
	if a.URL != "" {
		text += fmt.Sprintf(" (<%s|source>)", a.URL)
	}
	return map[string]any{
		"text": text,
		"attachments": []map[string]any{{
			"color": "#" + severityColor(a.Severity),
			"text":  a.Message,
			"fields": []map[string]any{
				{"title": "Metric", "value": a.MetricID, "short": true},
				{"title": "Status", "value": string(a.Status), "short": true},
				{"title": "Value", "value": measured(a), "short": true},
				{"title": "Kind", "value": a.Kind, "short": true},
			},
		}},
	}
}

func teamsPayload(a *Alert) map[string]any {
	card := map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    headline(a),
		"title":      "Healthboard: " + headline(a),
		"sections": []map[string]any{{
			"text": a.Message,
			"facts": []map[string]string{
				{"name": "Project", "value": a.Project},
				{"name": "Metric", "value": a.MetricID},
				{"name": "Status", "value": string(a.Status)},
				{"name": "Value", "value": measured(a)},
			},
		}},
	}
	if a.URL != "" {
		card["potentialAction"] = []map[string]any{{
			"@type":   "OpenUri",
			"name":    "Open source",
			"targets": []map[string]string{{"os": "default", "uri": a.URL}},
		}}
	}
	return card
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func stateLabel(s string) string {
	if s == StateResolved {
		return "RESOLVED"
	}
	return "FIRING"
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
