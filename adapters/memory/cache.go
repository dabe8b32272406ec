package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"gocompare/ports"
)

// Cache serves columns from a shared, read-only snapshot loaded up front.
// Requests it cannot answer fall through to the source.
type Cache struct {
	src ports.DataAccessor

	mu      sync.RWMutex
	columns map[string]ports.Series
	counts  map[string]int
	hits    int
	misses  int
}

var _ ports.DataAccessor = (*Cache)(nil)

// NewCache wraps src.
func NewCache(src ports.DataAccessor) *Cache {
	return &Cache{src: src, columns: make(map[string]ports.Series), counts: make(map[string]int)}
}

// PredicateKey renders a predicate list in a canonical order.
func PredicateKey(preds []ports.Predicate) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.Column + "\x1f" + string(p.Op) + "\x1f" + strings.Join(p.Values, "\x1e")
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x1d")
}

func cacheKey(name string, preds []ports.Predicate) string {
	return name + "\x1c" + PredicateKey(preds)
}

// Prewarm loads every named column under preds.
func (c *Cache) Prewarm(ctx context.Context, names []string, preds ...ports.Predicate) error {
	for _, name := range names {
		s, err := c.src.Column(ctx, name, preds...)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.columns[cacheKey(name, preds)] = s
		c.mu.Unlock()
	}
	n, err := c.src.RowCount(ctx, preds...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.counts[PredicateKey(preds)] = n
	c.mu.Unlock()
	return nil
}

// RowCount answers from the snapshot when the predicate set was prewarmed.
func (c *Cache) RowCount(ctx context.Context, preds ...ports.Predicate) (int, error) {
	c.mu.RLock()
	n, ok := c.counts[PredicateKey(preds)]
	c.mu.RUnlock()
	if ok {
		return n, nil
	}
	return c.src.RowCount(ctx, preds...)
}

// Column answers from the snapshot or delegates to the source.
func (c *Cache) Column(ctx context.Context, name string, preds ...ports.Predicate) (ports.Series, error) {
	c.mu.RLock()
	s, ok := c.columns[cacheKey(name, preds)]
	c.mu.RUnlock()
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	if ok {
		return s, nil
	}
	return c.src.Column(ctx, name, preds...)
}

// Stats reports cache hits and misses.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
