package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/riching/stock-scraper/internal/analyzer"
	"github.com/riching/stock-scraper/internal/config"
	"github.com/riching/stock-scraper/internal/crawler"
	"github.com/riching/stock-scraper/internal/database"
	"github.com/riching/stock-scraper/internal/progress"
	"github.com/riching/stock-scraper/internal/report"
	"github.com/riching/stock-scraper/internal/sources"
)

var (
	batch     = flag.Int("batch", 0, "stocks to process this run (0 = config default)")
	progPath  = flag.String("progress", "", "progress file path (default from config)")
	scorePath = flag.String("report", "", "write high-scoring stocks to this xlsx path")
	threshold = flag.Float64("threshold", 7.0, "minimum overall score for the report")
	date      = flag.String("date", time.Now().Format("2006-01-02"), "score date (YYYY-MM-DD)")
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	flag.Parse()

	cfg := config.Load()
	if cfg.QwenAPIKey == "" {
		log.Fatal("QWEN_API_KEY is required for the info crawl")
	}

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	store := database.NewStore(db)

	path := cfg.ProgressFile
	if *progPath != "" {
		path = *progPath
	}
	prog := progress.NewStore(path, cfg.MaxRetries, cfg.FreshnessDays)

	codes, err := store.AllStockCodes()
	if err != nil {
		log.Fatalf("Loading stock universe failed: %v", err)
	}
	if len(codes) == 0 {
		log.Fatal("Entity universe is empty, seed entity_reference first")
	}
	prog.SetTotal(len(codes))

	size := cfg.BatchSize
	if *batch > 0 {
		size = *batch
	}
	todo := prog.BatchToProcess(codes, size)
	if len(todo) == 0 {
		log.Printf("Nothing to do, %s", prog.GetSummary())
		return
	}

	infoSources := []sources.InfoSource{
		sources.NewSinaNewsSource(cfg.FetchTimeout),
		sources.NewAnnouncementSource(cfg.FetchTimeout),
		sources.NewGubaCommentSource(cfg.FetchTimeout),
	}
	cls := analyzer.New(cfg.QwenAPIKey, cfg.QwenModel)

	ic := crawler.NewInfoCrawler(store, infoSources, cls, prog, crawler.InfoCrawlConfig{
		Date:       *date,
		Delay:      cfg.RequestDelay,
		MaxRetries: cfg.MaxRetries,
	})

	log.Printf("Processing %d of %d stocks this run", len(todo), len(codes))
	ic.RunBatch(context.Background(), todo)

	if *scorePath != "" {
		if err := report.WriteHighScorers(*scorePath, prog.Scores(), *threshold); err != nil {
			log.Printf("Score report write failed: %v", err)
		} else {
			log.Printf("Score report written to %s", *scorePath)
		}
	}
}
