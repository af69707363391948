package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/healthboard/agent/internal/config"
	"github.com/obsidianstack/healthboard/agent/internal/source"
	"github.com/obsidianstack/healthboard/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second

	// ReportsPath is the server route reports are posted to.
	ReportsPath = "/api/v1/reports"
)

// Shipper buffers reports and ships them to healthboard-server.
// Ship() is non-blocking; when the buffer is full the oldest report is evicted.
// Run() must be called in a goroutine to drain the buffer.
type Shipper struct {
	url    string
	buf    chan *types.Report
	client *http.Client
}

// New creates a Shipper for cfg.ServerEndpoint.
func New(cfg config.AgentConfig) (*Shipper, error) {
	if cfg.ServerEndpoint == "" {
		return nil, errors.New("shipper: server_endpoint is empty")
	}
	client, err := source.NewHTTPClient(cfg.ServerAuth, config.TLSConfig{}, sendTimeout)
	if err != nil {
		return nil, fmt.Errorf("shipper: %w", err)
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		url:    strings.TrimRight(cfg.ServerEndpoint, "/") + ReportsPath,
		buf:    make(chan *types.Report, size),
		client: client,
	}, nil
}

// Ship enqueues rep. If the buffer is full the oldest entry is evicted.
func (s *Shipper) Ship(rep *types.Report) {
	select {
	case s.buf <- rep:
	default:
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"pass", old.PassID, "buffer_cap", cap(s.buf))
		default:
		}
		s.buf <- rep
	}
}

// Run drains the buffer, posting reports to the server. Run blocks until ctx
// is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return

		case rep := <-s.buf:
			err := s.send(ctx, rep)
			if err == nil {
				bo.reset()
				slog.Debug("shipper: report delivered", "project", rep.Project, "pass", rep.PassID)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if isPermanentError(err) {
				slog.Error("shipper: server rejected report, discarding",
					"project", rep.Project, "pass", rep.PassID, "err", err)
				continue
			}

			// Put the report back if there's room; otherwise newer reports
			// supersede it.
			select {
			case s.buf <- rep:
			default:
			}

			wait := bo.next()
			slog.Warn("shipper: send failed, will retry",
				"url", s.url, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// statusError is a non-2xx answer from the server.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("server answered %d", e.code)
	}
	return fmt.Sprintf("server answered %d: %s", e.code, e.body)
}

func (s *Shipper) send(ctx context.Context, rep *types.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return &statusError{code: http.StatusBadRequest, body: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
}

// isPermanentError reports whether retrying err cannot succeed.
func isPermanentError(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return se.code >= 400 && se.code < 500
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
