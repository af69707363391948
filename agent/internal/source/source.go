package source

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned by a Source that is reachable but has no measurement
// for the requested ID. Metrics report it as missing.
var ErrNoData = errors.New("source: no data")

// Source delivers raw numbers for metric source IDs.
type Source interface {
	Measure(ctx context.Context, id string) (float64, error)
}

// Dater is implemented by sources that know when a measurement was taken,
// such as a team-spirit page edited by hand.
type Dater interface {
	MeasuredAt(ctx context.Context, id string) (time.Time, error)
}

// Linker is implemented by sources that can point the dashboard at the page
// the measurement came from.
type Linker interface {
	URL(id string) string
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context, id string) (float64, error)

// Measure calls f.
func (f Func) Measure(ctx context.Context, id string) (float64, error) { return f(ctx, id) }
