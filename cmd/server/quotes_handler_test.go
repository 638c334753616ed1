package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quotedesk/internal/quote"
)

type fakeResolver struct {
	gotSymbols string
	gotHint    string
}

func (f *fakeResolver) ResolveAll(_ context.Context, symbols, hint string) ([]quote.Result, error) {
	f.gotSymbols = symbols
	f.gotHint = hint
	syms := quote.ParseSymbols(symbols)
	if len(syms) == 0 {
		return nil, quote.ErrNoSymbols
	}
	out := make([]quote.Result, 0, len(syms))
	for _, s := range syms {
		out = append(out, quote.Result{Symbol: s, Price: 100, Exchange: "NSE", DayHigh: 101, DayLow: 99, Source: quote.SourceStream})
	}
	return out, nil
}

func TestHandleQuotes_OK(t *testing.T) {
	f := &fakeResolver{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=RELIANCE,+TCS,++&exchange=nse", nil)

	handleQuotes(rr, req, f)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp quotesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Quotes) != 2 {
		t.Fatalf("want 2 quotes, got %d: %+v", len(resp.Quotes), resp.Quotes)
	}
	if resp.Quotes[0].Symbol != "RELIANCE" || resp.Quotes[1].Symbol != "TCS" {
		t.Fatalf("order not preserved: %+v", resp.Quotes)
	}
	if f.gotHint != "nse" {
		t.Fatalf("hint not passed through: %q", f.gotHint)
	}
}

func TestHandleQuotes_EmptySymbolsIsBadRequest(t *testing.T) {
	for _, target := range []string{"/api/quotes", "/api/quotes?symbols=", "/api/quotes?symbols=+,++"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		handleQuotes(rr, req, &fakeResolver{})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: want 400, got %d", target, rr.Code)
		}
	}
}

func TestMiddleware_JSONHeadersAndRecover(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=TCS", nil)
	withJSONHeaders(recoverPanic(panicky)).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("panic must become 500, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type: %q", ct)
	}
}
