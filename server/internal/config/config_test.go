package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Agent-only config; server section absent.
	p := writeConfig(t, `agent:
  server_endpoint: "http://localhost:8080"
project:
  name: Integrationtest
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Report.TTL != DefaultReportTTL {
		t.Errorf("report.ttl: got %v, want %v", cfg.Server.Report.TTL, DefaultReportTTL)
	}
	if cfg.Server.History.Backend != "" {
		t.Errorf("history.backend: got %q, want disabled", cfg.Server.History.Backend)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  auth:
    mode: apikey
    key_env: MY_KEY
    header: X-Healthboard-Key
  report:
    ttl: 10m
  history:
    backend: file
    path: /var/lib/healthboard/history.jsonl
    recent: 100
  alerts:
    rules:
      - name: metric-red
        condition: status == red
        severity: critical
        cooldown: 1h
      - name: stale
        condition: age_days > 14
        kinds: [team_spirit]
    webhooks:
      - type: slack
        url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", s.HTTPPort)
	}
	if s.Auth.EffectiveHeader() != "X-Healthboard-Key" {
		t.Errorf("header: got %q, want X-Healthboard-Key", s.Auth.EffectiveHeader())
	}
	if s.Report.TTL != 10*time.Minute {
		t.Errorf("report.ttl: got %v, want 10m", s.Report.TTL)
	}
	if s.History.Backend != "file" || s.History.Recent != 100 {
		t.Errorf("history: got %+v", s.History)
	}
	if len(s.Alerts.Rules) != 2 || s.Alerts.Rules[0].Cooldown != time.Hour {
		t.Errorf("alerts.rules: got %+v", s.Alerts.Rules)
	}
	if got := s.Alerts.Rules[1].Kinds; len(got) != 1 || got[0] != "team_spirit" {
		t.Errorf("alerts.rules[1].kinds: got %v", got)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "X-API-Key" {
		t.Errorf("EffectiveHeader: got %q, want X-API-Key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HEALTHBOARD_SERVER_HTTP_PORT", "9999")
	t.Setenv("HEALTHBOARD_SERVER_REPORT_TTL", "90m")
	p := writeConfig(t, `server:
  http_port: 8081
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Errorf("http_port: got %d, want 9999", cfg.Server.HTTPPort)
	}
	if cfg.Server.Report.TTL != 90*time.Minute {
		t.Errorf("report.ttl: got %v, want 90m", cfg.Server.Report.TTL)
	}
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 70000
  auth:
    mode: oauth2
  history:
    backend: postgres
  alerts:
    rules:
      - name: bad
        condition: drop_pct > 10
      - condition: value >> 3
        severity: urgent
    webhooks:
      - type: pagerduty
`)
	_, err := Load(p)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{
		"http_port 70000",
		`auth.mode "oauth2"`,
		"dsn_env is required",
		`unknown field "drop_pct"`,
		"rules[1]: name is required",
		`unknown operator ">>"`,
		`severity "urgent"`,
		`type "pagerduty"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidateCondition(t *testing.T) {
	cases := []struct {
		cond string
		ok   bool
	}{
		{"status == red", true},
		{"status != green", true},
		{"status > red", false},
		{"missing == true", true},
		{"value > 10", true},
		{"value >= 2.5", true},
		{"age_days > fourteen", false},
		{"value > ", false},
		{"", false},
	}
	for _, c := range cases {
		err := ValidateCondition(c.cond)
		if (err == nil) != c.ok {
			t.Errorf("ValidateCondition(%q) = %v, want ok=%v", c.cond, err, c.ok)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
