package database

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/riching/stock-scraper/internal/models"
	"gorm.io/gorm"
)

// Crawl frequency per content type. A stock's content is only re-crawled
// once the window has elapsed since the last attempt.
var crawlWindows = map[models.ContentType]time.Duration{
	models.ContentNews:         2 * time.Hour,
	models.ContentAnnouncement: 6 * time.Hour,
	models.ContentComment:      1 * time.Hour,
	models.ContentReport:       12 * time.Hour,
}

const defaultCrawlWindow = 6 * time.Hour

// Store wraps the gorm handle with the row-level operations the crawler
// needs. All writes are single-row and idempotent where the schema demands it.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// InsertMarketRecord inserts one price bar unless a row for (code, date)
// already exists. Returns false when the insert was skipped as a duplicate;
// a duplicate is never an error.
func (s *Store) InsertMarketRecord(rec *models.MarketRecord) (bool, error) {
	exists, err := s.MarketRecordExists(rec.Code, rec.Date)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if err := s.db.Create(rec).Error; err != nil {
		// A concurrent worker may have inserted the same key between the
		// check and the create. The unique index makes that a no-op.
		if isDuplicateKey(err) {
			log.Printf("[store] %s %s already exists, skipping", rec.Code, rec.Date)
			return false, nil
		}
		return false, fmt.Errorf("insert market record: %w", err)
	}
	return true, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "Duplicate entry")
}

// UpdateMarketRecord is the explicit correction path for an existing row.
func (s *Store) UpdateMarketRecord(code, date string, fields map[string]interface{}) (bool, error) {
	res := s.db.Model(&models.MarketRecord{}).
		Where("code = ? AND date = ?", code, date).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("update market record: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteDate purges every record for the given date, used to force a fresh
// re-crawl of that day.
func (s *Store) DeleteDate(date string) (int64, error) {
	res := s.db.Where("date = ?", date).Delete(&models.MarketRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete records for %s: %w", date, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) GetMarketRecord(code, date string) (*models.MarketRecord, error) {
	var rec models.MarketRecord
	err := s.db.Where("code = ? AND date = ?", code, date).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market record: %w", err)
	}
	return &rec, nil
}

func (s *Store) MarketRecordExists(code, date string) (bool, error) {
	var count int64
	err := s.db.Model(&models.MarketRecord{}).
		Where("code = ? AND date = ?", code, date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check market record: %w", err)
	}
	return count > 0, nil
}

// CountForDate counts how many stocks have a record on the given date.
func (s *Store) CountForDate(date string) (int64, error) {
	var count int64
	err := s.db.Model(&models.MarketRecord{}).Where("date = ?", date).Count(&count).Error
	return count, err
}

// AllStockCodes loads the entity universe in stable code order.
func (s *Store) AllStockCodes() ([]string, error) {
	var codes []string
	err := s.db.Model(&models.StockRef{}).Order("code").Pluck("code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("load stock codes: %w", err)
	}
	return codes, nil
}

func (s *Store) CountStocks() (int64, error) {
	var count int64
	err := s.db.Model(&models.StockRef{}).Count(&count).Error
	return count, err
}

// FingerprintExists reports whether an item with this fingerprint was already
// persisted for the content type.
func (s *Store) FingerprintExists(fingerprint string, contentType models.ContentType) (bool, error) {
	var count int64
	err := s.db.Table(contentType.Table()).
		Where("fingerprint = ?", fingerprint).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return count > 0, nil
}

// InsertInfoItems persists a batch of analyzed items, skipping fingerprints
// that already exist. Returns the number of rows actually written.
func (s *Store) InsertInfoItems(contentType models.ContentType, items []models.InfoItem) (int, error) {
	saved := 0
	for i := range items {
		item := items[i]
		item.ID = 0
		item.CreatedAt = time.Now()
		if err := s.db.Table(contentType.Table()).Create(&item).Error; err != nil {
			if isDuplicateKey(err) {
				continue
			}
			return saved, fmt.Errorf("insert info item: %w", err)
		}
		saved++
	}
	return saved, nil
}

// SaveSentimentScore upserts the per-stock daily aggregate.
func (s *Store) SaveSentimentScore(score *models.SentimentScore) error {
	var existing models.SentimentScore
	err := s.db.Where("code = ? AND date = ?", score.Code, score.Date).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(score).Error
	}
	if err != nil {
		return fmt.Errorf("save sentiment score: %w", err)
	}
	score.ID = existing.ID
	score.CreatedAt = existing.CreatedAt
	return s.db.Save(score).Error
}

// RecentOverallScore returns the most recent overall score within the
// lookback window, or -1 when the stock has no recent score.
func (s *Store) RecentOverallScore(code string, lookbackDays int) (float64, error) {
	cutoff := time.Now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	var score models.SentimentScore
	err := s.db.Where("code = ? AND date >= ?", code, cutoff).
		Order("date desc").
		First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return -1.0, nil
	}
	if err != nil {
		return -1.0, fmt.Errorf("recent overall score: %w", err)
	}
	return score.OverallScore, nil
}

// ShouldCrawlContent reports whether the per-category frequency window has
// elapsed since the last crawl of this stock's content type.
func (s *Store) ShouldCrawlContent(code string, contentType models.ContentType) (bool, error) {
	var status models.CrawlStatus
	err := s.db.Where("code = ? AND content_type = ?", code, string(contentType)).
		First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("load crawl status: %w", err)
	}
	if status.LastAttempt.IsZero() {
		return true, nil
	}
	window, ok := crawlWindows[contentType]
	if !ok {
		window = defaultCrawlWindow
	}
	return time.Since(status.LastAttempt) > window, nil
}

// UpdateCrawlStatus records an attempt for (code, contentType), bumping the
// attempt counter and item total. Attempts only ever increase. A negative
// score means the pass produced no scored items; the stored score is kept.
func (s *Store) UpdateCrawlStatus(code string, contentType models.ContentType, status string, itemCount int, score float64) error {
	var existing models.CrawlStatus
	err := s.db.Where("code = ? AND content_type = ?", code, string(contentType)).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&models.CrawlStatus{
			Code:        code,
			ContentType: string(contentType),
			Status:      status,
			Attempts:    1,
			LastAttempt: time.Now(),
			Score:       score,
			TotalCount:  itemCount,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("update crawl status: %w", err)
	}
	existing.Status = status
	existing.Attempts++
	existing.LastAttempt = time.Now()
	if score >= 0 {
		existing.Score = score
	}
	existing.TotalCount += itemCount
	return s.db.Save(&existing).Error
}
