package source

import (
	"context"
	"sync"
	"time"
)

// defaultCacheTTL is how long a fetched document is reused. It is short
// enough that two passes never share a document.
const defaultCacheTTL = 30 * time.Second

// docCache holds the last fetched document of one source.
type docCache[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	fetch     func(ctx context.Context) (T, error)
	doc       T
	fetchedAt time.Time
	valid     bool
}

func newDocCache[T any](fetch func(ctx context.Context) (T, error)) *docCache[T] {
	return &docCache[T]{ttl: defaultCacheTTL, now: time.Now, fetch: fetch}
}

// get returns the cached document or fetches a new one. Errors are not
// cached, so the next metric retries.
func (c *docCache[T]) get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.doc, nil
	}
	doc, err := c.fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.doc, c.fetchedAt, c.valid = doc, c.now(), true
	return doc, nil
}
