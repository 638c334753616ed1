package quote

import (
	"math"

	"quotedesk/internal/market"
)

// FloorPrice is the sentinel used when no source can supply a price. The
// engine never reports "no data"; it degrades to this floor and tags the
// result's Source so consumers can tell a real price from the fallback.
const FloorPrice = 1.0

// Metrics is a fully derived set of quote numbers at full precision.
// Rounding happens once, at emission.
type Metrics struct {
	Price     float64
	Change    float64
	PctChange float64
	DayHigh   float64
	DayLow    float64
}

// DepthMid approximates a price from the visible order book: the midpoint
// of the best bid and best ask, or the single present side's extreme.
// Returns 0 when the book is empty.
func DepthMid(d market.Depth) float64 {
	var bestBid, bestAsk float64
	for _, lvl := range d.Buy {
		if lvl.Price > bestBid {
			bestBid = lvl.Price
		}
	}
	for _, lvl := range d.Sell {
		if lvl.Price > 0 && (bestAsk == 0 || lvl.Price < bestAsk) {
			bestAsk = lvl.Price
		}
	}
	switch {
	case bestBid > 0 && bestAsk > 0:
		return (bestBid + bestAsk) / 2
	case bestBid > 0:
		return bestBid
	case bestAsk > 0:
		return bestAsk
	}
	return 0
}

// CompletePrice runs the full completion order for a missing or zero last
// price: session close, depth midpoint, session high, session low, then
// the sentinel floor. The unconditional floor means this never returns a
// non-positive price.
func CompletePrice(last float64, ohlc market.OHLC, depth market.Depth) float64 {
	if last > 0 {
		return last
	}
	if ohlc.Close > 0 {
		return ohlc.Close
	}
	if mid := DepthMid(depth); mid > 0 {
		return mid
	}
	if ohlc.High > 0 {
		return ohlc.High
	}
	if ohlc.Low > 0 {
		return ohlc.Low
	}
	return FloorPrice
}

// ChangeFrom computes change and percent change against the session
// reference: close when positive, else the high/low midpoint, else the
// price itself (zero change).
func ChangeFrom(price float64, ohlc market.OHLC) (change, pct float64) {
	ref := ohlc.Close
	if ref <= 0 {
		if ohlc.High > 0 && ohlc.Low > 0 {
			ref = (ohlc.High + ohlc.Low) / 2
		} else {
			ref = price
		}
	}
	change = price - ref
	if ref != 0 {
		pct = change / ref * 100
	}
	return change, pct
}

// Derive computes the full metric set from whatever a source supplied.
func Derive(last float64, ohlc market.OHLC, depth market.Depth) Metrics {
	price := CompletePrice(last, ohlc, depth)
	return metricsAt(price, ohlc)
}

// metricsAt derives change and the day range for an already-settled price.
func metricsAt(price float64, ohlc market.OHLC) Metrics {
	change, pct := ChangeFrom(price, ohlc)
	dayHigh := ohlc.High
	if dayHigh <= 0 {
		dayHigh = price
	}
	dayLow := ohlc.Low
	if dayLow <= 0 {
		dayLow = price
	}
	return Metrics{Price: price, Change: change, PctChange: pct, DayHigh: dayHigh, DayLow: dayLow}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
