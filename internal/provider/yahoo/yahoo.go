// Package yahoo is the last-resort price source: the public chart API.
// It only serves cash-exchange symbols and maps them to the provider's
// market-suffixed form itself.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"quotedesk/internal/httpx"
)

const marketSuffix = ".NS"

// FastInfo is the subset of chart metadata the cascade needs.
type FastInfo struct {
	LastPrice     float64
	PreviousClose float64
	DayHigh       float64
	DayLow        float64
}

type Config struct {
	BaseURL              string
	MaxRequestsPerSecond float64
	Burst                int
}

type Client struct {
	cfg     Config
	client  *httpx.Client
	limiter *rate.Limiter
}

func New(cfg Config, hc *httpx.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	c := &Client{cfg: cfg, client: hc}
	if cfg.MaxRequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), burst)
	}
	return c
}

// MapSymbol appends the market suffix unless the caller already did.
func MapSymbol(symbol string) string {
	if strings.HasSuffix(symbol, marketSuffix) {
		return symbol
	}
	return symbol + marketSuffix
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				PreviousClose        float64 `json:"previousClose"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FastInfo fetches last price, previous close and the day range for a cash
// symbol.
func (c *Client) FastInfo(ctx context.Context, symbol string) (FastInfo, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return FastInfo{}, err
		}
	}
	mapped := MapSymbol(symbol)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(mapped))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return FastInfo{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return FastInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return FastInfo{}, fmt.Errorf("GET chart %s -> %d: %s", mapped, resp.StatusCode, string(b))
	}
	var api chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return FastInfo{}, fmt.Errorf("decode chart: %w", err)
	}
	if api.Chart.Error != nil {
		return FastInfo{}, fmt.Errorf("provider error: %s: %s", api.Chart.Error.Code, api.Chart.Error.Description)
	}
	if len(api.Chart.Result) == 0 {
		return FastInfo{}, fmt.Errorf("no chart result for %s", mapped)
	}
	m := api.Chart.Result[0].Meta
	prev := m.ChartPreviousClose
	if prev == 0 {
		prev = m.PreviousClose
	}
	return FastInfo{
		LastPrice:     m.RegularMarketPrice,
		PreviousClose: prev,
		DayHigh:       m.RegularMarketDayHigh,
		DayLow:        m.RegularMarketDayLow,
	}, nil
}
