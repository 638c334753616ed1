package quote

import (
	"math"
	"testing"

	"quotedesk/internal/market"
)

func TestDepthMid_BothSides(t *testing.T) {
	d := market.Depth{
		Buy:  []market.DepthLevel{{Price: 99}, {Price: 98}},
		Sell: []market.DepthLevel{{Price: 101}},
	}
	if got := DepthMid(d); got != 100.0 {
		t.Fatalf("want 100.0 (mid of best bid 99 and best ask 101), got %v", got)
	}
}

func TestDepthMid_OneSided(t *testing.T) {
	bids := market.Depth{Buy: []market.DepthLevel{{Price: 95}, {Price: 97}}}
	if got := DepthMid(bids); got != 97 {
		t.Fatalf("bids only: want max bid 97, got %v", got)
	}
	asks := market.Depth{Sell: []market.DepthLevel{{Price: 103}, {Price: 102}}}
	if got := DepthMid(asks); got != 102 {
		t.Fatalf("asks only: want min ask 102, got %v", got)
	}
	if got := DepthMid(market.Depth{}); got != 0 {
		t.Fatalf("empty book: want 0, got %v", got)
	}
}

func TestCompletePrice_Order(t *testing.T) {
	ohlc := market.OHLC{Open: 10, High: 12, Low: 9, Close: 11}
	depth := market.Depth{Buy: []market.DepthLevel{{Price: 99}}, Sell: []market.DepthLevel{{Price: 101}}}

	if got := CompletePrice(50, ohlc, depth); got != 50 {
		t.Fatalf("last price wins: got %v", got)
	}
	if got := CompletePrice(0, ohlc, depth); got != 11 {
		t.Fatalf("close next: got %v", got)
	}
	if got := CompletePrice(0, market.OHLC{High: 12, Low: 9}, depth); got != 100 {
		t.Fatalf("depth mid next: got %v", got)
	}
	if got := CompletePrice(0, market.OHLC{High: 12, Low: 9}, market.Depth{}); got != 12 {
		t.Fatalf("high next: got %v", got)
	}
	if got := CompletePrice(0, market.OHLC{Low: 9}, market.Depth{}); got != 9 {
		t.Fatalf("low next: got %v", got)
	}
	if got := CompletePrice(0, market.OHLC{}, market.Depth{}); got != FloorPrice {
		t.Fatalf("sentinel floor last: got %v", got)
	}
}

func TestChangeFrom_CloseReference(t *testing.T) {
	change, pct := ChangeFrom(182.35, market.OHLC{Close: 180.00, High: 183, Low: 179})
	if math.Abs(change-2.35) > 1e-9 {
		t.Fatalf("change: want 2.35, got %v", change)
	}
	if got := round2(pct); got != 1.31 {
		t.Fatalf("pct: want 1.31 after rounding, got %v", got)
	}
}

func TestChangeFrom_HighLowMidpointReference(t *testing.T) {
	change, pct := ChangeFrom(105, market.OHLC{High: 110, Low: 90})
	if change != 5 { // reference = (110+90)/2 = 100
		t.Fatalf("change: want 5, got %v", change)
	}
	if pct != 5 {
		t.Fatalf("pct: want 5, got %v", pct)
	}
}

func TestChangeFrom_NoReferenceYieldsZero(t *testing.T) {
	change, pct := ChangeFrom(42, market.OHLC{})
	if change != 0 || pct != 0 {
		t.Fatalf("want zero change against self-reference, got %v / %v", change, pct)
	}
}

func TestDerive_DayRangeFallsBackToPrice(t *testing.T) {
	m := Derive(50, market.OHLC{}, market.Depth{})
	if m.DayHigh != 50 || m.DayLow != 50 {
		t.Fatalf("want day range pinned to price, got %+v", m)
	}
}

func TestDerive_FullPrecisionUntilEmission(t *testing.T) {
	// 1/3 style pct must stay unrounded inside Metrics.
	m := Derive(101, market.OHLC{Close: 99}, market.Depth{})
	if m.PctChange == round2(m.PctChange) {
		t.Fatalf("pct unexpectedly pre-rounded: %v", m.PctChange)
	}
}
