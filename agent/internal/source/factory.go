package source

import (
	"fmt"

	"github.com/obsidianstack/healthboard/agent/internal/config"
)

// New returns the Source adapter for the given configuration.
func New(src config.Source) (Source, error) {
	switch src.Type {
	case "prometheus":
		return NewPrometheus(src)
	case "file":
		return NewFile(src)
	case "certificate":
		return NewCertificate(src)
	default:
		return nil, fmt.Errorf("source: unsupported type %q", src.Type)
	}
}

// NewSet builds every configured source, keyed by ID.
func NewSet(srcs []config.Source) (map[string]Source, error) {
	out := make(map[string]Source, len(srcs))
	for _, src := range srcs {
		s, err := New(src)
		if err != nil {
			return nil, err
		}
		out[src.ID] = s
	}
	return out, nil
}
