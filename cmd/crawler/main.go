package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/riching/stock-scraper/internal/config"
	"github.com/riching/stock-scraper/internal/crawler"
	"github.com/riching/stock-scraper/internal/database"
	"github.com/riching/stock-scraper/internal/report"
	"github.com/riching/stock-scraper/internal/sources"
)

var (
	date       = flag.String("date", time.Now().Format("2006-01-02"), "target trading date (YYYY-MM-DD)")
	verify     = flag.Bool("verify", false, "compare fetched bars against stored ones instead of saving")
	fix        = flag.Bool("fix", false, "with -verify, overwrite stored bars that mismatch")
	clean      = flag.Bool("clean", false, "purge stored records for the date before crawling")
	limit      = flag.Int("limit", 0, "crawl only the first N stocks (0 = all)")
	workers    = flag.Int("workers", 4, "worker pool size")
	maxCalls   = flag.Int("max-calls", 0, "upstream call budget (0 = config default)")
	reportPath = flag.String("report", "", "write an xlsx run report to this path")
	browser    = flag.Bool("browser", false, "include the headless-browser source in the chain")
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	flag.Parse()

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	store := database.NewStore(db)

	budget := cfg.MaxCalls
	if *maxCalls > 0 {
		budget = *maxCalls
	}

	factory := func() []sources.PriceSource {
		chain := []sources.PriceSource{
			sources.NewTencentSource(cfg.FetchTimeout),
			sources.NewSinaHistorySource(cfg.FetchTimeout),
			sources.NewSinaQuoteSource(cfg.FetchTimeout),
		}
		if *browser {
			chain = append(chain, sources.NewEastMoneySource(cfg.FetchTimeout))
		}
		chain = append(chain, sources.NewYahooSource(cfg.FetchTimeout))
		return chain
	}

	o := crawler.NewOrchestrator(store, factory, crawler.RunConfig{
		Date:       *date,
		Verify:     *verify,
		Fix:        *fix && *verify,
		Clean:      *clean,
		Limit:      *limit,
		Workers:    *workers,
		Delay:      cfg.RequestDelay,
		MaxRetries: cfg.MaxRetries,
		MaxCalls:   budget,
	})

	result, err := o.Run(context.Background())
	if err != nil {
		log.Fatalf("Crawl failed: %v", err)
	}

	if *reportPath != "" {
		if err := report.WriteRunReport(*reportPath, result); err != nil {
			log.Printf("Report write failed: %v", err)
		} else {
			log.Printf("Run report written to %s", *reportPath)
		}
	}

	if !result.ForwardProgress() && result.Stats.Failed > 0 {
		log.Printf("No forward progress: every stock failed")
		os.Exit(1)
	}
}
