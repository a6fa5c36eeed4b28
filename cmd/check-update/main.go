package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/riching/stock-scraper/internal/api"
	"github.com/riching/stock-scraper/internal/config"
	"github.com/riching/stock-scraper/internal/database"
)

var (
	date  = flag.String("date", time.Now().Format("2006-01-02"), "date to check (YYYY-MM-DD)")
	quiet = flag.Bool("quiet", false, "no output, exit code only")
)

// Exits 0 when the date is sufficiently covered, 1 otherwise. Made for
// cron jobs that gate downstream steps on crawl completion.
func main() {
	flag.Parse()
	if err := godotenv.Load(); err != nil && !*quiet {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		if !*quiet {
			log.Printf("Database initialization failed: %v", err)
		}
		os.Exit(1)
	}
	store := database.NewStore(db)

	covered, err := store.CountForDate(*date)
	if err != nil {
		if !*quiet {
			log.Printf("Coverage query failed: %v", err)
		}
		os.Exit(1)
	}
	total, err := store.CountStocks()
	if err != nil {
		if !*quiet {
			log.Printf("Universe query failed: %v", err)
		}
		os.Exit(1)
	}

	status := api.CoverageStatus(*date, covered, total)
	if !*quiet {
		fmt.Printf("%s: %d/%d stocks covered (%.1f%%), complete=%v\n",
			status.Date, status.Covered, status.Total, status.Ratio*100, status.Complete)
	}
	if !status.Complete {
		os.Exit(1)
	}
}
