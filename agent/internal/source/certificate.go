package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/obsidianstack/healthboard/agent/internal/config"
)

const certDialTimeout = 10 * time.Second

// Certificate measures the number of whole days until the leaf certificate of
// an HTTPS endpoint expires. Expired certificates give negative values.
type Certificate struct {
	id       string
	endpoint string
	timeout  time.Duration
	tlsCfg   *tls.Config
	now      func() time.Time
}

// NewCertificate returns a Certificate source for src. src.Endpoint is the
// default host; a measurement ID, when set, names another host or https URL.
func NewCertificate(src config.Source) (*Certificate, error) {
	if src.Endpoint != "" {
		if _, err := hostPort(src.Endpoint); err != nil {
			return nil, fmt.Errorf("source %q: %w", src.ID, err)
		}
	}
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = certDialTimeout
	}
	return &Certificate{
		id:       src.ID,
		endpoint: src.Endpoint,
		timeout:  timeout,
		tlsCfg: &tls.Config{
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		},
		now: time.Now,
	}, nil
}

// Measure implements Source.
func (c *Certificate) Measure(ctx context.Context, id string) (float64, error) {
	target := id
	if target == "" {
		target = c.endpoint
	}
	addr, err := hostPort(target)
	if err != nil {
		return 0, fmt.Errorf("source %q: %w", c.id, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: c.tlsCfg}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("source %q: dial %s: %w", c.id, addr, err)
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		return 0, fmt.Errorf("source %q: %s: %w", c.id, addr, ErrNoData)
	}
	days := peers[0].NotAfter.Sub(c.now()).Hours() / 24
	return math.Floor(days), nil
}

// URL implements Linker.
func (c *Certificate) URL(id string) string {
	if id != "" {
		return id
	}
	return c.endpoint
}

// hostPort turns "https://host[:port]/..." or "host[:port]" into a dial
// address, defaulting to port 443.
func hostPort(target string) (string, error) {
	host := target
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("certificate endpoint %q: %w", target, err)
		}
		if u.Scheme != "https" {
			return "", fmt.Errorf("certificate endpoint %q is not https", target)
		}
		host = u.Host
	}
	if host == "" {
		return "", fmt.Errorf("certificate endpoint %q has no host", target)
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}
	return host, nil
}
