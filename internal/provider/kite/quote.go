package kite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"quotedesk/internal/instrument"
	"quotedesk/internal/market"
)

type quoteResponse struct {
	Status    string                  `json:"status"`
	Data      map[string]market.Quote `json:"data"`
	Message   string                  `json:"message"`
	ErrorType string                  `json:"error_type"`
}

// Quote fetches quotes for one or more "EXCHANGE:SYMBOL" keys. The result
// map is keyed exactly as requested; absent keys mean the provider had no
// data for that instrument.
func (c *Client) Quote(ctx context.Context, keys ...string) (map[string]market.Quote, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("kite: no instrument keys")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	for k, vs := range c.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	for _, k := range keys {
		q.Add("i", k)
	}
	u := strings.TrimRight(c.baseURL, "/") + "/quote?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("GET /quote -> %d: %s", resp.StatusCode, string(b))
	}

	var api quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if api.Status != "success" {
		return nil, fmt.Errorf("provider error: type=%q msg=%q", api.ErrorType, api.Message)
	}
	return api.Data, nil
}

// QuoteOne fetches a single instrument key.
func (c *Client) QuoteOne(ctx context.Context, key string) (market.Quote, error) {
	data, err := c.Quote(ctx, key)
	if err != nil {
		return market.Quote{}, err
	}
	q, ok := data[key]
	if !ok {
		return market.Quote{}, fmt.Errorf("kite: no data for %s", key)
	}
	return q, nil
}

// Instruments downloads the instrument dump for an exchange (NSE, NFO, ...).
// The provider serves it as CSV.
func (c *Client) Instruments(ctx context.Context, exchange string) ([]instrument.Record, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	u := strings.TrimRight(c.baseURL, "/") + "/instruments/" + url.PathEscape(strings.ToUpper(exchange))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("GET /instruments/%s -> %d: %s", exchange, resp.StatusCode, string(b))
	}
	rows, err := instrument.ReadCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	// The dump may omit the exchange column per-row; stamp it.
	for i := range rows {
		if rows[i].Exchange == "" {
			rows[i].Exchange = strings.ToUpper(exchange)
		}
	}
	return rows, nil
}
