package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/riching/stock-scraper/internal/api"
	"github.com/riching/stock-scraper/internal/config"
	"github.com/riching/stock-scraper/internal/database"
	"github.com/riching/stock-scraper/internal/progress"
)

var (
	port     = flag.String("port", "", "listen port (default from config)")
	progPath = flag.String("progress", "", "progress file path (default from config)")
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

	path := cfg.ProgressFile
	if *progPath != "" {
		path = *progPath
	}
	prog := progress.NewStore(path, cfg.MaxRetries, cfg.FreshnessDays)

	listen := cfg.MonitorPort
	if *port != "" {
		listen = *port
	}

	server := api.NewServer(store, prog)
	log.Printf("Monitor listening on :%s", listen)
	if err := server.Router().Run(":" + listen); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
