package metric

import (
	"sort"
	"sync"
	"time"
)

// Cache memoizes values and evaluations for one reporting pass.
type Cache struct {
	now time.Time

	mu     sync.Mutex
	values map[string]*valueCell
	evals  map[string]*evalCell
	errs   map[string]error
}

type valueCell struct {
	once sync.Once
	res  measured
}

type evalCell struct {
	once sync.Once
	eval Evaluation
}

// measured is the outcome of asking a metric's collaborators for its value.
type measured struct {
	value       Value
	numerical   float64
	numerator   int
	denominator int
	ratio       bool
}

// NewCache returns an empty Cache for a pass running at now.
func NewCache(now time.Time) *Cache {
	return &Cache{
		now:    now,
		values: make(map[string]*valueCell),
		evals:  make(map[string]*evalCell),
		errs:   make(map[string]error),
	}
}

// Now returns the pass time.
func (c *Cache) Now() time.Time { return c.now }

func (c *Cache) valueCell(id string) *valueCell {
	c.mu.Lock()
	defer c.mu.Unlock()
	cell, ok := c.values[id]
	if !ok {
		cell = &valueCell{}
		c.values[id] = cell
	}
	return cell
}

func (c *Cache) evalCell(id string) *evalCell {
	c.mu.Lock()
	defer c.mu.Unlock()
	cell, ok := c.evals[id]
	if !ok {
		cell = &evalCell{}
		c.evals[id] = cell
	}
	return cell
}

// fail records the first collaborator error seen for metric id.
func (c *Cache) fail(id string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.errs[id]; !ok {
		c.errs[id] = err
	}
}

// Errors returns the collaborator errors recorded during the pass, keyed by
// metric ID.
func (c *Cache) Errors() map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]error, len(c.errs))
	for id, err := range c.errs {
		out[id] = err
	}
	return out
}

// Evaluated returns the IDs of all metrics evaluated so far, sorted.
func (c *Cache) Evaluated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.evals))
	for id := range c.evals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
