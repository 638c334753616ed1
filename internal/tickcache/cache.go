// Package tickcache holds the most recent streamed tick per trading symbol.
// The feed client writes continuously; resolution calls read concurrently.
// Last write wins per symbol and reads never block on writes beyond the
// RWMutex critical section; no lock is held across any network call.
package tickcache

import (
	"sync"

	"quotedesk/internal/market"
)

// Cache is the shared tick store plus the subscription registry.
type Cache struct {
	mu    sync.RWMutex
	ticks map[string]market.Tick
	meta  map[string]string // trading symbol -> exchange
	subs  map[string]struct{}

	// updates announces first-time subscriptions to the feed client.
	// Sends are non-blocking: a slow or absent consumer must not stall
	// Subscribe, it only delays when the feed picks the symbol up.
	updates chan string
}

func New() *Cache {
	return &Cache{
		ticks:   make(map[string]market.Tick),
		meta:    make(map[string]string),
		subs:    make(map[string]struct{}),
		updates: make(chan string, 256),
	}
}

// Subscribe registers interest in a symbol. Idempotent: concurrent
// duplicate calls register once and announce once. A fresh subscription
// has no tick until the next streamed update arrives, which is expected.
func (c *Cache) Subscribe(symbol string) {
	c.mu.Lock()
	if _, ok := c.subs[symbol]; ok {
		c.mu.Unlock()
		return
	}
	c.subs[symbol] = struct{}{}
	c.mu.Unlock()

	select {
	case c.updates <- symbol:
	default:
	}
}

// Updates is the stream of newly subscribed symbols.
func (c *Cache) Updates() <-chan string { return c.updates }

// Subscribed snapshots the current subscription set.
func (c *Cache) Subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	return out
}

// Put stores the latest tick for its trading symbol.
func (c *Cache) Put(t market.Tick) {
	c.mu.Lock()
	c.ticks[t.TradingSymbol] = t
	if t.Exchange != "" {
		c.meta[t.TradingSymbol] = t.Exchange
	}
	c.mu.Unlock()
}

// Tick returns a copy of the most recent tick for symbol.
func (c *Cache) Tick(symbol string) (market.Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.ticks[symbol]
	return t, ok
}

// SetMeta records the instrument's exchange tag ahead of any tick.
func (c *Cache) SetMeta(symbol, exchange string) {
	if exchange == "" {
		return
	}
	c.mu.Lock()
	c.meta[symbol] = exchange
	c.mu.Unlock()
}

// Meta returns the exchange tag known for symbol, if any.
func (c *Cache) Meta(symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ex, ok := c.meta[symbol]
	return ex, ok
}
