package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/healthboard/agent/internal/config"
)

// Prometheus measures by summing series of a Prometheus text exposition.
type Prometheus struct {
	id       string
	endpoint string
	client   *http.Client
	families *docCache[map[string]*dto.MetricFamily]
}

// NewPrometheus returns a Prometheus source for src.
func NewPrometheus(src config.Source) (*Prometheus, error) {
	client, err := NewHTTPClient(src.Auth, src.TLS, src.Timeout)
	if err != nil {
		return nil, fmt.Errorf("source %q: build http client: %w", src.ID, err)
	}
	p := &Prometheus{id: src.ID, endpoint: src.Endpoint, client: client}
	p.families = newDocCache(p.fetch)
	return p, nil
}

func (p *Prometheus) fetch(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	body, err := get(ctx, p.client, p.endpoint, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", p.id, err)
	}
	mfs, err := parseMetrics(body)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", p.id, err)
	}
	return mfs, nil
}

// Measure implements Source. id is a selector: a family name optionally
// followed by {label="value",...}.
func (p *Prometheus) Measure(ctx context.Context, id string) (float64, error) {
	sel, err := parseSelector(id)
	if err != nil {
		return 0, fmt.Errorf("source %q: %w", p.id, err)
	}
	mfs, err := p.families.get(ctx)
	if err != nil {
		return 0, err
	}
	total, matched := sumFamily(mfs[sel.name], sel.labels)
	if !matched {
		return 0, fmt.Errorf("source %q: %s: %w", p.id, id, ErrNoData)
	}
	return total, nil
}

// URL implements Linker.
func (p *Prometheus) URL(string) string { return p.endpoint }

// parseMetrics decodes a Prometheus text exposition into metric families.
// A partial result with a parse warning is still returned.
func parseMetrics(body []byte) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up the counter, gauge or untyped values of the series of mf
// carrying all of labels. It reports whether any series matched.
func sumFamily(mf *dto.MetricFamily, labels map[string]string) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	var (
		total   float64
		matched bool
	)
	for _, m := range mf.GetMetric() {
		if !hasLabels(m, labels) {
			continue
		}
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		case m.Summary != nil:
			total += float64(m.Summary.GetSampleCount())
		case m.Histogram != nil:
			total += float64(m.Histogram.GetSampleCount())
		default:
			continue
		}
		matched = true
	}
	return total, matched
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}

type selector struct {
	name   string
	labels map[string]string
}

// parseSelector parses `name` or `name{a="x",b="y"}`. Label values may not
// contain commas.
func parseSelector(s string) (selector, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '{')
	if open < 0 {
		if s == "" {
			return selector{}, fmt.Errorf("empty selector")
		}
		return selector{name: s}, nil
	}
	if !strings.HasSuffix(s, "}") {
		return selector{}, fmt.Errorf("selector %q: missing closing brace", s)
	}
	sel := selector{name: strings.TrimSpace(s[:open]), labels: make(map[string]string)}
	if sel.name == "" {
		return selector{}, fmt.Errorf("selector %q: missing metric name", s)
	}
	body := strings.TrimSpace(s[open+1 : len(s)-1])
	if body == "" {
		return sel, nil
	}
	for _, pair := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return selector{}, fmt.Errorf("selector %q: bad matcher %q", s, pair)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if uq, err := strconv.Unquote(v); err == nil {
			v = uq
		}
		sel.labels[k] = v
	}
	return sel, nil
}
