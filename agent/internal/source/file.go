package source

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/healthboard/agent/internal/config"
)

// Smileys map team-spirit smileys to their numerical scores.
var Smileys = map[string]float64{
	":-)": 2,
	":-|": 1,
	":-(": 0,
}

var dateLayouts = []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339}

// File measures from a YAML or JSON document of the form
//
//	measurements:
//	  team-a: ":-)"
//	  failing: 3
//	  sonar-version: "4.5.6"
//	  team-b:
//	    value: ":-|"
//	    date: 2024-03-01 10:00:00
//	    url: https://wiki.example.com/team-b
type File struct {
	id       string
	location string
	read     func(ctx context.Context) ([]byte, error)
	doc      *docCache[map[string]Entry]
}

// Entry is one measurement in a File document.
type Entry struct {
	Value float64
	Date  time.Time
	URL   string
}

// UnmarshalYAML accepts a bare scalar or a {value, date, url} mapping.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v, err := ParseValue(node.Value)
		if err != nil {
			return err
		}
		e.Value = v
		return nil
	}
	var raw struct {
		Value string `yaml:"value"`
		Date  string `yaml:"date"`
		URL   string `yaml:"url"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := ParseValue(raw.Value)
	if err != nil {
		return err
	}
	e.Value, e.URL = v, raw.URL
	if raw.Date != "" {
		if e.Date, err = parseDate(raw.Date); err != nil {
			return err
		}
	}
	return nil
}

type fileDoc struct {
	Measurements map[string]Entry `yaml:"measurements"`
}

// NewFile returns a File source reading src.Path, or src.Endpoint over HTTP
// when set.
func NewFile(src config.Source) (*File, error) {
	f := &File{id: src.ID}
	if src.Endpoint != "" {
		client, err := NewHTTPClient(src.Auth, src.TLS, src.Timeout)
		if err != nil {
			return nil, fmt.Errorf("source %q: build http client: %w", src.ID, err)
		}
		f.location = src.Endpoint
		f.read = func(ctx context.Context) ([]byte, error) { return fetchDoc(ctx, client, src.Endpoint) }
	} else {
		f.location = src.Path
		f.read = func(context.Context) ([]byte, error) { return os.ReadFile(src.Path) }
	}
	f.doc = newDocCache(f.load)
	return f, nil
}

func fetchDoc(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	return get(ctx, client, url, "application/yaml, application/json")
}

func (f *File) load(ctx context.Context) (map[string]Entry, error) {
	data, err := f.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("source %q: read %s: %w", f.id, f.location, err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("source %q: parse %s: %w", f.id, f.location, err)
	}
	return doc.Measurements, nil
}

func (f *File) entry(ctx context.Context, id string) (Entry, error) {
	doc, err := f.doc.get(ctx)
	if err != nil {
		return Entry{}, err
	}
	e, ok := doc[id]
	if !ok {
		return Entry{}, fmt.Errorf("source %q: %s: %w", f.id, id, ErrNoData)
	}
	return e, nil
}

// Measure implements Source.
func (f *File) Measure(ctx context.Context, id string) (float64, error) {
	e, err := f.entry(ctx, id)
	return e.Value, err
}

// MeasuredAt implements Dater. Entries without a date return ErrNoData.
func (f *File) MeasuredAt(ctx context.Context, id string) (time.Time, error) {
	e, err := f.entry(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if e.Date.IsZero() {
		return time.Time{}, fmt.Errorf("source %q: %s has no date: %w", f.id, id, ErrNoData)
	}
	return e.Date, nil
}

// URL implements Linker. It returns the entry's own link when the document
// has been read and carries one, the document location otherwise.
func (f *File) URL(id string) string {
	f.doc.mu.Lock()
	doc, valid := f.doc.doc, f.doc.valid
	f.doc.mu.Unlock()
	if valid {
		if e, ok := doc[id]; ok && e.URL != "" {
			return e.URL
		}
	}
	if strings.HasPrefix(f.location, "http://") || strings.HasPrefix(f.location, "https://") {
		return f.location
	}
	return ""
}

// ParseValue converts a measurement string: a smiley, a version number
// (a.b or a.b.c, encoded as a*1e6+b*1e3+c) or a plain number.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, ok := Smileys[s]; ok {
		return v, nil
	}
	if strings.Count(s, ".") >= 2 {
		return ParseVersion(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable measurement %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("measurement %q is not finite", s)
	}
	return v, nil
}

// ParseVersion encodes "a.b.c" as a*1e6+b*1e3+c. Missing parts are 0 and
// non-numeric suffixes of a part ("5-beta") are ignored.
func ParseVersion(s string) (float64, error) {
	parts := strings.SplitN(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".", 4)
	var out float64
	for i, weight := range []float64{1e6, 1e3, 1} {
		if i >= len(parts) {
			break
		}
		digits := strings.TrimRightFunc(parts[i], func(r rune) bool { return r < '0' || r > '9' })
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0, fmt.Errorf("unparseable version %q", s)
		}
		if n >= 1000 && i > 0 {
			return 0, fmt.Errorf("version part %d of %q exceeds 999", n, s)
		}
		out += float64(n) * weight
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
