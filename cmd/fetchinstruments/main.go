// fetchinstruments downloads the NSE + NFO instrument dumps and writes the
// merged CSV the server's instrument table loads. Run it out-of-band (cron
// or manually); the server picks the new file up on its next refresh tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"quotedesk/internal/config"
	"quotedesk/internal/httpx"
	"quotedesk/internal/instrument"
	"quotedesk/internal/provider/kite"
)

func main() {
	var (
		outPath      string
		exchangesCSV string
		cfgPath      string
		timeoutSec   int
	)
	flag.StringVar(&outPath, "out", getenv("INSTRUMENTS_PATH", "instruments.csv"), "output CSV path")
	flag.StringVar(&exchangesCSV, "exchanges", "NSE,NFO", "comma-separated exchanges to download")
	flag.StringVar(&cfgPath, "config", getenv("CONFIG_FILE", ""), "path to config.yaml (optional)")
	flag.IntVar(&timeoutSec, "timeout", 60, "request timeout seconds")
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var all []instrument.Record
	for _, exch := range strings.Split(exchangesCSV, ",") {
		exch = strings.TrimSpace(exch)
		if exch == "" {
			continue
		}
		rows, err := client.Instruments(ctx, exch)
		if err != nil {
			// A single missing exchange should not sink the whole dump.
			log.Printf("warning: %s instruments: %v", exch, err)
			continue
		}
		log.Printf("%s: %d instruments", exch, len(rows))
		all = append(all, rows...)
	}
	if len(all) == 0 {
		log.Fatal("no instruments fetched")
	}

	// Write to a temp file and rename so the server never loads a partial CSV.
	tmp := outPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Fatalf("create %s: %v", tmp, err)
	}
	if err := instrument.WriteCSV(f, all); err != nil {
		f.Close()
		log.Fatalf("write csv: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close: %v", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		log.Fatalf("rename: %v", err)
	}
	fmt.Printf("wrote %d instruments to %s\n", len(all), outPath)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
