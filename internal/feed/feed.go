// Package feed keeps the tick cache populated from the streaming
// market-data endpoint. The resolution engine never talks to the feed
// directly; it only reads the cache, so a dead feed degrades tier 1 to
// "no cached tick" instead of failing resolutions.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"quotedesk/internal/instrument"
	"quotedesk/internal/logger"
	"quotedesk/internal/market"
	"quotedesk/internal/tickcache"
)

type Config struct {
	URL string
	// HandshakeTimeout bounds the websocket dial. Defaults to 5s.
	HandshakeTimeout time.Duration
}

type Client struct {
	cfg   Config
	cache *tickcache.Cache
	table *instrument.Table
	log   *logger.Entry
}

func New(cfg Config, cache *tickcache.Cache, table *instrument.Table) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Client{
		cfg:   cfg,
		cache: cache,
		table: table,
		log:   logger.GetLogger().WithComponent("feed"),
	}
}

type subscribeMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// Run connects and streams ticks into the cache until ctx is done,
// reconnecting with capped backoff. On every (re)connect the current
// subscription set is replayed so the upstream resumes all symbols.
func (c *Client) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.connectAndStream(ctx)
		if ctx.Err() != nil {
			return
		}
		c.log.WithError(err).WithFields(logger.Fields{"url": c.cfg.URL, "retry_in": backoff.String()}).Warn("feed disconnected")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) connectAndStream(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.log.WithFields(logger.Fields{"url": c.cfg.URL}).Info("feed connected")

	if symbols := c.cache.Subscribed(); len(symbols) > 0 {
		if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Symbols: symbols}); err != nil {
			return err
		}
		for _, s := range symbols {
			c.stampMeta(s)
		}
	}

	// Writer: forward newly subscribed symbols upstream. Closing the conn
	// on ctx cancellation also unblocks the read loop below.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case sym := <-c.cache.Updates():
				c.stampMeta(sym)
				if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Symbols: []string{sym}}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var tick market.Tick
		if err := json.Unmarshal(payload, &tick); err != nil {
			c.log.WithError(err).Debug("skipping malformed tick")
			continue
		}
		if tick.TradingSymbol == "" {
			continue
		}
		tick.ReceivedAt = time.Now().UTC()
		if tick.Exchange == "" {
			if rec, ok := c.table.Lookup(tick.TradingSymbol); ok {
				tick.Exchange = rec.Exchange
			}
		}
		c.cache.Put(tick)
	}
}

// stampMeta records the instrument's exchange ahead of its first tick so
// tier 1 can override the heuristic exchange immediately.
func (c *Client) stampMeta(symbol string) {
	if rec, ok := c.table.Lookup(symbol); ok {
		c.cache.SetMeta(symbol, rec.Exchange)
	}
}
