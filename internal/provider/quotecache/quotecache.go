package quotecache

import (
	"context"
	"sync"
	"time"

	"quotedesk/internal/market"
)

// Quoter is the single-key quote source being memoized.
type Quoter interface {
	QuoteOne(ctx context.Context, key string) (market.Quote, error)
}

type entry struct {
	expiresAt time.Time
	quote     market.Quote
}

// Cache memoizes REST quote responses per instrument key for a short TTL.
// It caches inputs to the resolution cascade, never resolved results, so a
// burst of resolutions for the same instrument issues one upstream call.
type Cache struct {
	Q        Quoter
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
}

func (c *Cache) QuoteOne(ctx context.Context, key string) (market.Quote, error) {
	if c.Q == nil || c.TTL <= 0 {
		return c.Q.QuoteOne(ctx, key)
	}

	now := time.Now()
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.quote, nil
	}

	q, err := c.Q.QuoteOne(ctx, key)
	if err != nil {
		// A stale entry beats an upstream failure.
		if ok {
			return e.quote, nil
		}
		return market.Quote{}, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: now.Add(c.TTL), quote: q}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// best-effort cap: drop expired first, then arbitrary keys
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
	return q, nil
}
