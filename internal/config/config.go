package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL  string
	QwenAPIKey   string
	QwenModel    string
	ProgressFile string
	MonitorPort  string
	Environment  string

	// Crawler tuning
	MaxRetries    int
	FreshnessDays int
	FetchTimeout  time.Duration
	RequestDelay  time.Duration
	MaxCalls      int
	BatchSize     int
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:stock@tcp(127.0.0.1:3306)/stock_data?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL:  getEnv("DATABASE_URL", defaultDSN),
		QwenAPIKey:   getEnv("QWEN_API_KEY", ""),
		QwenModel:    getEnv("QWEN_MODEL", "qwen3-max"),
		ProgressFile: getEnv("PROGRESS_FILE", "crawl_progress.json"),
		MonitorPort:  getEnv("MONITOR_PORT", "8090"),
		Environment:  getEnv("ENVIRONMENT", "development"),

		MaxRetries:    getEnvInt("MAX_RETRIES", 3),
		FreshnessDays: getEnvInt("FRESHNESS_DAYS", 7),
		FetchTimeout:  time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		RequestDelay:  time.Duration(getEnvInt("REQUEST_DELAY_MS", 1000)) * time.Millisecond,
		MaxCalls:      getEnvInt("MAX_CALLS", 5000),
		BatchSize:     getEnvInt("BATCH_SIZE", 50),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
