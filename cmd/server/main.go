package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quotedesk/internal/config"
	"quotedesk/internal/feed"
	"quotedesk/internal/httpx"
	"quotedesk/internal/instrument"
	"quotedesk/internal/logger"
	"quotedesk/internal/provider/kite"
	"quotedesk/internal/provider/quotecache"
	"quotedesk/internal/provider/yahoo"
	"quotedesk/internal/quote"
	"quotedesk/internal/tickcache"
)

type quotesResponse struct {
	Quotes []quote.Result `json:"quotes"`
}

// quoteResolver is what the handlers need from the cascade.
type quoteResolver interface {
	ResolveAll(ctx context.Context, symbols, exchangeHint string) ([]quote.Result, error)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.GetLogger().WithComponent("main").WithFields(logger.Fields{"error": err.Error()}).Fatal("config")
	}
	log := logger.GetLogger()
	log.SetLevelString(cfg.Log.Level)
	log.EnableRotation(logger.RotationConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	mainLog := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Instrument table: load is best-effort; resolution degrades to echoing
	// input symbols until the dump shows up.
	table := instrument.NewTable()
	refresher := instrument.NewRefresher(table, cfg.Instruments.Path, time.Duration(cfg.Instruments.RefreshIntervalMin)*time.Minute)
	go refresher.Run(ctx)

	ticks := tickcache.New()
	if cfg.Feed.Enabled && cfg.Feed.URL != "" {
		go feed.New(feed.Config{URL: cfg.Feed.URL}, ticks, table).Run(ctx)
	} else {
		mainLog.Warn("feed disabled, streaming tier will stay cold")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var rest quote.RESTQuoter
	if cfg.Kite.Enabled {
		if cfg.Kite.APIKey == "" || cfg.Kite.AccessToken == "" {
			mainLog.Warn("kite.enabled=true but KITE_API_KEY/KITE_ACCESS_TOKEN not set; skipping REST tier")
		} else {
			kc, err := kite.NewClient(cfg.Kite.APIKey, cfg.Kite.AccessToken,
				kite.WithBaseURL(cfg.Kite.BaseURL),
				kite.WithHTTPClient(httpClient.HTTP),
				kite.WithRateLimit(float64(cfg.Kite.MaxRequestsPerSecond), cfg.Kite.Burst),
			)
			if err != nil {
				mainLog.WithFields(logger.Fields{"error": err.Error()}).Fatal("kite client")
			}
			rest = kc
			if cfg.Kite.CacheTTLSec > 0 {
				rest = &quotecache.Cache{Q: kc, TTL: time.Duration(cfg.Kite.CacheTTLSec) * time.Second, MaxItems: cfg.Kite.CacheMaxItems}
			}
		}
	}

	var fallback quote.FastQuoter
	if cfg.Yahoo.Enabled {
		fallback = yahoo.New(yahoo.Config{
			BaseURL:              cfg.Yahoo.BaseURL,
			MaxRequestsPerSecond: float64(cfg.Yahoo.MaxRequestsPerSecond),
			Burst:                cfg.Yahoo.Burst,
		}, httpClient)
	}

	resolver := quote.NewResolver(table, ticks, rest, fallback)
	resolver.TierTimeout = time.Duration(cfg.Resolve.TierTimeoutMS) * time.Millisecond
	resolver.MaxConcurrency = cfg.Resolve.MaxConcurrency

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleQuotes(w, r, resolver)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		mainLog.WithFields(logger.Fields{"port": cfg.Server.Port}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mainLog.WithFields(logger.Fields{"error": err.Error()}).Fatal("server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func handleQuotes(w http.ResponseWriter, r *http.Request, resolver quoteResolver) {
	symbols := r.URL.Query().Get("symbols")
	hint := r.URL.Query().Get("exchange")

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	results, err := resolver.ResolveAll(ctx, symbols, hint)
	if err != nil {
		if errors.Is(err, quote.ErrNoSymbols) {
			http.Error(w, "no symbols provided", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(quotesResponse{Quotes: results})
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
