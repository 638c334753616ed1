// Package quote implements the tiered fallback cascade that turns a raw
// symbol into a complete market quote. The externally visible operation
// cannot fail; it can only degrade in data quality, and every degradation
// is logged with the tier that was attempted.
package quote

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"quotedesk/internal/instrument"
	"quotedesk/internal/logger"
	"quotedesk/internal/market"
	"quotedesk/internal/provider/yahoo"
)

// ErrNoSymbols is the only error a caller ever sees: the request carried
// no usable symbol at all.
var ErrNoSymbols = errors.New("no symbols provided")

// Source tags name the tier that supplied a result's data.
const (
	SourceStream = "stream"
	SourceREST   = "rest"
	SourceYahoo  = "yahoo"
	SourceFloor  = "floor"
)

// Result is one resolved quote. Every numeric field is finite and rounded
// to 2 decimals; Price is always strictly positive.
type Result struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	PctChange float64 `json:"pct_change"`
	Exchange  string  `json:"exchange"`
	DayHigh   float64 `json:"dayHigh"`
	DayLow    float64 `json:"dayLow"`
	Source    string  `json:"source"`
}

// TickSource is the streaming cache consumed by tier 1. Subscribe is cheap
// and idempotent and must be called before every read; a fresh symbol has
// no tick until the next streamed update, which is not an error.
type TickSource interface {
	Subscribe(symbol string)
	Tick(symbol string) (market.Tick, bool)
	Meta(symbol string) (string, bool)
}

// RESTQuoter is the primary provider consumed by tier 2, keyed by
// "EXCHANGE:SYMBOL".
type RESTQuoter interface {
	QuoteOne(ctx context.Context, key string) (market.Quote, error)
}

// FastQuoter is the secondary last-resort source consumed by tier 3.
type FastQuoter interface {
	FastInfo(ctx context.Context, symbol string) (yahoo.FastInfo, error)
}

// Resolver orchestrates the cascade. All collaborators are injected; a nil
// collaborator simply skips its tier.
type Resolver struct {
	instruments *instrument.Table
	ticks       TickSource
	rest        RESTQuoter
	fallback    FastQuoter

	// TierTimeout bounds each external call so a stalled provider cannot
	// stall the cascade for other tiers or symbols.
	TierTimeout time.Duration
	// MaxConcurrency bounds the batch fan-out worker pool.
	MaxConcurrency int

	log *logger.Entry
}

func NewResolver(table *instrument.Table, ticks TickSource, rest RESTQuoter, fallback FastQuoter) *Resolver {
	return &Resolver{
		instruments:    table,
		ticks:          ticks,
		rest:           rest,
		fallback:       fallback,
		TierTimeout:    2 * time.Second,
		MaxConcurrency: 8,
		log:            logger.GetLogger().WithComponent("resolver"),
	}
}

// ParseSymbols splits a comma-separated symbol list, trimming and dropping
// blank tokens and uppercasing the rest. Duplicates are preserved.
func ParseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ResolveAll resolves every symbol in a comma-separated list, in input
// order, one result per token. Symbols resolve independently and in
// parallel under a bounded pool; results are reassembled in request order.
func (r *Resolver) ResolveAll(ctx context.Context, symbols, exchangeHint string) ([]Result, error) {
	syms := ParseSymbols(symbols)
	if len(syms) == 0 {
		return nil, ErrNoSymbols
	}
	out := make([]Result, len(syms))
	g, gctx := errgroup.WithContext(ctx)
	limit := r.MaxConcurrency
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)
	for i, s := range syms {
		i, s := i, s
		g.Go(func() error {
			out[i] = r.ResolveQuote(gctx, s, exchangeHint)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// ResolveQuote resolves one symbol through the tier cascade. It never
// fails: if every tier comes up empty the sentinel floor is emitted.
func (r *Resolver) ResolveQuote(ctx context.Context, rawSymbol, exchangeHint string) Result {
	sym := r.instruments.Resolve(rawSymbol)
	exch := instrument.GuessExchange(sym, exchangeHint)

	if res, ok := r.fromStream(sym, &exch); ok {
		return res
	}
	if res, ok := r.fromREST(ctx, sym, exch); ok {
		return res
	}
	if exch == "NSE" {
		if res, ok := r.fromFallback(ctx, sym, exch); ok {
			return res
		}
	}

	r.log.WithFields(logger.Fields{"symbol": sym, "exchange": exch}).Warn("all tiers empty, emitting floor quote")
	return r.emit(sym, exch, Metrics{Price: FloorPrice, DayHigh: FloorPrice, DayLow: FloorPrice}, SourceFloor)
}

// fromStream is tier 1: subscribe, read the cached tick, derive. The tick's
// own exchange tag overrides the heuristic when present. The completion
// order here stops at the depth midpoint: a tick with no usable price
// means the stream is cold and a fresher source should be consulted.
func (r *Resolver) fromStream(sym string, exch *string) (Result, bool) {
	if r.ticks == nil {
		return Result{}, false
	}
	r.ticks.Subscribe(sym)
	tk, ok := r.ticks.Tick(sym)
	if !ok {
		r.log.WithFields(logger.Fields{"symbol": sym, "tier": SourceStream, "reason": "no cached tick"}).Debug("tier empty")
		return Result{}, false
	}
	price := tk.LastPrice
	if price <= 0 {
		if tk.OHLC.Close > 0 {
			price = tk.OHLC.Close
		} else {
			price = DepthMid(tk.Depth)
		}
	}
	if price <= 0 {
		r.log.WithFields(logger.Fields{"symbol": sym, "tier": SourceStream, "reason": "tick has no usable price"}).Debug("tier empty")
		return Result{}, false
	}
	if ex, ok := r.ticks.Meta(sym); ok && ex != "" {
		*exch = ex
	} else if tk.Exchange != "" {
		*exch = tk.Exchange
	}
	return r.emit(sym, *exch, metricsAt(price, tk.OHLC), SourceStream), true
}

// fromREST is tier 2: the primary provider keyed by "EXCHANGE:SYMBOL".
// When the provider answers at all, the unconditional floor in
// CompletePrice guarantees a positive price.
func (r *Resolver) fromREST(ctx context.Context, sym, exch string) (Result, bool) {
	if r.rest == nil {
		return Result{}, false
	}
	key := exch + ":" + sym
	tctx, cancel := context.WithTimeout(ctx, r.tierTimeout())
	defer cancel()
	q, err := r.rest.QuoteOne(tctx, key)
	if err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"symbol": sym, "tier": SourceREST, "key": key}).Warn("tier failed")
		return Result{}, false
	}
	last := q.LastPrice
	if last <= 0 {
		last = q.LastTradedPrice
	}
	return r.emit(sym, exch, Derive(last, q.OHLC, q.Depth), SourceREST), true
}

// fromFallback is tier 3, cash-exchange symbols only: the secondary
// provider's fast info, with change computed from its previous close.
func (r *Resolver) fromFallback(ctx context.Context, sym, exch string) (Result, bool) {
	if r.fallback == nil {
		return Result{}, false
	}
	tctx, cancel := context.WithTimeout(ctx, r.tierTimeout())
	defer cancel()
	fi, err := r.fallback.FastInfo(tctx, sym)
	if err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"symbol": sym, "tier": SourceYahoo}).Warn("tier failed")
		return Result{}, false
	}
	if fi.LastPrice <= 0 {
		r.log.WithFields(logger.Fields{"symbol": sym, "tier": SourceYahoo, "reason": "no last price"}).Warn("tier empty")
		return Result{}, false
	}
	var change, pct float64
	if fi.PreviousClose > 0 {
		change = fi.LastPrice - fi.PreviousClose
		pct = change / fi.PreviousClose * 100
	}
	dayHigh := fi.DayHigh
	if dayHigh <= 0 {
		dayHigh = fi.LastPrice
	}
	dayLow := fi.DayLow
	if dayLow <= 0 {
		dayLow = fi.LastPrice
	}
	m := Metrics{Price: fi.LastPrice, Change: change, PctChange: pct, DayHigh: dayHigh, DayLow: dayLow}
	return r.emit(sym, exch, m, SourceYahoo), true
}

func (r *Resolver) tierTimeout() time.Duration {
	if r.TierTimeout > 0 {
		return r.TierTimeout
	}
	return 2 * time.Second
}

// emit is the single exit point: rounding happens here and nowhere else.
func (r *Resolver) emit(sym, exch string, m Metrics, source string) Result {
	return Result{
		Symbol:    sym,
		Price:     round2(m.Price),
		Change:    round2(m.Change),
		PctChange: round2(m.PctChange),
		Exchange:  exch,
		DayHigh:   round2(m.DayHigh),
		DayLow:    round2(m.DayLow),
		Source:    source,
	}
}
