package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/singleflight"
)

// StockCache is a read-through cache in front of a StockReader. Cart
// mutations query stock on every call, so uncached reads would hit the
// catalog once per keystroke; a short TTL keeps the advisory check cheap
// without holding stale values long enough to matter (the checkout
// transaction re-reads stock authoritatively anyway).
//
// An optional bloom filter of inventoried product ids short-circuits
// lookups for ids that are definitely not tracked. False positives only
// cost one extra query.
type StockCache struct {
	src StockReader
	ttl time.Duration

	sf singleflight.Group

	mu      sync.Mutex
	entries map[string]stockEntry
	known   *bloom.BloomFilter
}

type stockEntry struct {
	stock   int
	tracked bool
	expires time.Time
}

// NewStockCache wraps src with a TTL cache. A non-positive ttl disables
// caching but keeps singleflight coalescing.
func NewStockCache(src StockReader, ttl time.Duration) *StockCache {
	return &StockCache{
		src:     src,
		ttl:     ttl,
		entries: make(map[string]stockEntry),
	}
}

// Prime installs a bloom filter of inventoried product ids so that lookups
// for unknown ids skip the backing store entirely. Call it once at startup
// with the full catalog; products added later are still found via the
// regular path only if they pass the filter, so Prime is best used with a
// generous estimate.
func (c *StockCache) Prime(products []Product) {
	n := 0
	for _, p := range products {
		if p.Stock != nil {
			n++
		}
	}
	filter := bloom.NewWithEstimates(uint(max(n*2, 64)), 0.01)
	for _, p := range products {
		if p.Stock != nil {
			filter.AddString(p.ID)
		}
	}

	c.mu.Lock()
	c.known = filter
	c.mu.Unlock()
}

// Stock implements StockReader.
func (c *StockCache) Stock(ctx context.Context, productID string) (int, bool, error) {
	c.mu.Lock()
	if c.known != nil && !c.known.TestString(productID) {
		c.mu.Unlock()
		return 0, false, nil
	}
	if e, ok := c.entries[productID]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		return e.stock, e.tracked, nil
	}
	c.mu.Unlock()

	type result struct {
		stock   int
		tracked bool
	}
	v, err, _ := c.sf.Do(productID, func() (any, error) {
		stock, tracked, err := c.src.Stock(ctx, productID)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[productID] = stockEntry{stock: stock, tracked: tracked, expires: time.Now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return result{stock: stock, tracked: tracked}, nil
	})
	if err != nil {
		return 0, false, err
	}

	r := v.(result)
	return r.stock, r.tracked, nil
}

// Invalidate drops the cached entry for a product, forcing the next read
// through to the backing store.
func (c *StockCache) Invalidate(productID string) {
	c.mu.Lock()
	delete(c.entries, productID)
	c.mu.Unlock()
}
