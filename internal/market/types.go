package market

import "time"

// OHLC holds the session reference prices for an instrument.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// DepthLevel is one visible order-book level.
type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity uint32  `json:"quantity"`
	Orders   uint32  `json:"orders"`
}

// Depth is the visible order book. Buy levels are bids, Sell levels asks.
type Depth struct {
	Buy  []DepthLevel `json:"buy"`
	Sell []DepthLevel `json:"sell"`
}

// Tick is a streamed market-data update for one instrument.
type Tick struct {
	TradingSymbol string    `json:"tradingsymbol"`
	Exchange      string    `json:"exchange"`
	LastPrice     float64   `json:"last_price"`
	OHLC          OHLC      `json:"ohlc"`
	Depth         Depth     `json:"depth"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Quote is the shape returned by the primary REST provider for one
// "EXCHANGE:SYMBOL" key. Field names follow the provider wire format.
type Quote struct {
	LastPrice       float64 `json:"last_price"`
	LastTradedPrice float64 `json:"last_traded_price"`
	OHLC            OHLC    `json:"ohlc"`
	Depth           Depth   `json:"depth"`
}
