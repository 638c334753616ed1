package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quotedesk/internal/httpx"
)

func TestMapSymbol(t *testing.T) {
	require.Equal(t, "SUZLON.NS", MapSymbol("SUZLON"))
	require.Equal(t, "SUZLON.NS", MapSymbol("SUZLON.NS"))
}

func TestFastInfo(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{
			"regularMarketPrice":55.2,
			"chartPreviousClose":54.0,
			"regularMarketDayHigh":56.1,
			"regularMarketDayLow":53.4
		}}],"error":null}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, httpx.New(5*time.Second))
	fi, err := c.FastInfo(context.Background(), "SUZLON")
	require.NoError(t, err)
	require.Equal(t, "/v8/finance/chart/SUZLON.NS", gotPath)
	require.Equal(t, 55.2, fi.LastPrice)
	require.Equal(t, 54.0, fi.PreviousClose)
	require.Equal(t, 56.1, fi.DayHigh)
	require.Equal(t, 53.4, fi.DayLow)
}

func TestFastInfo_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, httpx.New(5*time.Second))
	_, err := c.FastInfo(context.Background(), "NOPE")
	require.ErrorContains(t, err, "Not Found")
}

func TestFastInfo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, httpx.New(5*time.Second))
	_, err := c.FastInfo(context.Background(), "SUZLON")
	require.ErrorContains(t, err, "429")
}

func TestFastInfo_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, httpx.New(5*time.Second))
	_, err := c.FastInfo(context.Background(), "SUZLON")
	require.ErrorContains(t, err, "no chart result")
}
