// quotedump fetches raw quotes for a list of instrument keys and prints
// them as JSON. Debugging aid for checking what the primary provider
// actually returns for a key before the cascade massages it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"quotedesk/internal/config"
	"quotedesk/internal/httpx"
	"quotedesk/internal/provider/kite"
	"quotedesk/internal/quote"
)

func main() {
	var (
		symbolsCSV string
		exchange   string
		cfgPath    string
		timeoutSec int
	)
	flag.StringVar(&symbolsCSV, "symbols", "RELIANCE", "comma-separated trading symbols")
	flag.StringVar(&exchange, "exchange", "NSE", "exchange prefix for all symbols")
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.IntVar(&timeoutSec, "timeout", 10, "request timeout seconds")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Kite.APIKey == "" || cfg.Kite.AccessToken == "" {
		log.Fatal("KITE_API_KEY and KITE_ACCESS_TOKEN must be set")
	}

	httpClient := httpx.New(time.Duration(timeoutSec) * time.Second)
	client, err := kite.NewClient(cfg.Kite.APIKey, cfg.Kite.AccessToken,
		kite.WithBaseURL(cfg.Kite.BaseURL),
		kite.WithHTTPClient(httpClient.HTTP),
	)
	if err != nil {
		log.Fatalf("kite client: %v", err)
	}

	keys := make([]string, 0)
	for _, s := range quote.ParseSymbols(symbolsCSV) {
		keys = append(keys, exchange+":"+s)
	}
	if len(keys) == 0 {
		log.Fatal("no symbols given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	data, err := client.Quote(ctx, keys...)
	if err != nil {
		log.Fatalf("quote: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
