package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/obsidianstack/healthboard/agent/internal/config"
)

func TestCertificate_DaysLeft(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := NewCertificate(config.Source{
		ID:       "tls",
		Type:     "certificate",
		Endpoint: srv.URL,
		TLS:      config.TLSConfig{InsecureSkipVerify: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	notAfter := srv.Certificate().NotAfter
	c.now = func() time.Time { return notAfter.Add(-10*24*time.Hour - time.Hour) }

	got, err := c.Measure(context.Background(), "")
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got != 10 {
		t.Errorf("days = %v, want 10", got)
	}

	c.now = func() time.Time { return notAfter.Add(36 * time.Hour) }
	if got, _ := c.Measure(context.Background(), ""); got != -2 {
		t.Errorf("expired days = %v, want -2", got)
	}
}

func TestCertificate_MeasureByID(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := NewCertificate(config.Source{ID: "tls", TLS: config.TLSConfig{InsecureSkipVerify: true}})
	if err != nil {
		t.Fatal(err)
	}
	host := strings.TrimPrefix(srv.URL, "https://")
	if _, err := c.Measure(context.Background(), host); err != nil {
		t.Errorf("Measure(%q): %v", host, err)
	}
	if got := c.URL(host); got != host {
		t.Errorf("URL = %q, want %q", got, host)
	}
}

func TestCertificate_VerifyFailsWithoutSkip(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	c, _ := NewCertificate(config.Source{ID: "tls", Endpoint: srv.URL})
	if _, err := c.Measure(context.Background(), ""); err == nil {
		t.Error("expected an error for an untrusted certificate")
	}
}

func TestCertificate_Unreachable(t *testing.T) {
	c, _ := NewCertificate(config.Source{ID: "tls", Endpoint: "https://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Measure(context.Background(), "")
	if err == nil || errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want a dial error", err)
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://example.com", "example.com:443", false},
		{"https://example.com:8443/health", "example.com:8443", false},
		{"example.com", "example.com:443", false},
		{"example.com:9443", "example.com:9443", false},
		{"http://example.com", "", true},
		{"https://", "", true},
	}
	for _, tt := range tests {
		got, err := hostPort(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("hostPort(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("hostPort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
