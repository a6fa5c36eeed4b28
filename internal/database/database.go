package database

import (
	"fmt"
	"log"
	"time"

	"github.com/riching/stock-scraper/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Set connection pool parameters
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database initialized successfully")

	// Migrations: best effort, the tables may already exist with data
	if err := db.AutoMigrate(
		&models.MarketRecord{},
		&models.CrawlStatus{},
		&models.StockRef{},
		&models.SentimentScore{},
	); err != nil {
		log.Printf("Migration warning: %v", err)
	}
	for _, ct := range []models.ContentType{models.ContentNews, models.ContentAnnouncement, models.ContentComment} {
		if err := db.Table(ct.Table()).AutoMigrate(&models.InfoItem{}); err != nil {
			log.Printf("Migration warning (%s): %v", ct.Table(), err)
		}
	}

	return db, nil
}
