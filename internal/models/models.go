package models

import (
	"time"
)

// ContentType identifies an information category crawled for a stock.
type ContentType string

const (
	ContentNews         ContentType = "news"
	ContentAnnouncement ContentType = "announcement"
	ContentComment      ContentType = "comment"
	ContentReport       ContentType = "report"
)

// Table returns the info item table for this content type.
func (c ContentType) Table() string {
	switch c {
	case ContentNews:
		return "info_items_news"
	case ContentAnnouncement:
		return "info_items_announcements"
	case ContentComment:
		return "info_items_comments"
	default:
		return "info_items_" + string(c) + "s"
	}
}

// MarketRecord is one daily price bar for a stock. The (code, date) pair is
// unique in the store; inserts are skip-if-exists.
type MarketRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	Code      string    `json:"code" gorm:"size:6;not null;uniqueIndex:idx_code_date" validate:"required,len=6"`
	Date      string    `json:"date" gorm:"size:10;not null;uniqueIndex:idx_code_date" validate:"required"`
	Open      float64   `json:"open" validate:"required,gt=0,ltefield=High,gtefield=Low"`
	High      float64   `json:"high" validate:"required,gt=0,gtefield=Open,gtefield=Low,gtefield=Close"`
	Low       float64   `json:"low" validate:"required,gt=0,ltefield=Open,ltefield=High,ltefield=Close"`
	Close     float64   `json:"close" validate:"required,gt=0,ltefield=High,gtefield=Low"`
	Volume    int64     `json:"volume"`
	Amount    *float64  `json:"amount"`
	Name      *string   `json:"name" gorm:"size:64"`
	Change    *float64  `json:"change"`
	PctChange *float64  `json:"pct_change"`
}

func (MarketRecord) TableName() string { return "market_records" }

// InfoItem is one piece of crawled stock information (news article,
// announcement or comment). Items are keyed by fingerprint and never updated
// after creation; sentiment fields are attached once at insert time.
type InfoItem struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time `json:"created_at"`
	Code           string    `json:"code" gorm:"size:6;index;not null" validate:"required"`
	Title          string    `json:"title" gorm:"size:512" validate:"required"`
	Content        string    `json:"content" gorm:"type:text" validate:"required"`
	Source         string    `json:"source" gorm:"size:64;not null" validate:"required"`
	PublishDate    string    `json:"publish_date" gorm:"size:32"`
	URL            string    `json:"url" gorm:"size:1024"`
	Fingerprint    string    `json:"fingerprint" gorm:"size:32;uniqueIndex;not null" validate:"required"`
	SentimentScore float64   `json:"sentiment_score"`
	IsValid        bool      `json:"is_valid"`
	Analysis       string    `json:"analysis" gorm:"type:text"`
}

// CrawlStatus tracks per-(code, content type) crawl state in the database.
// It mirrors the progress file and drives per-category crawl frequency.
type CrawlStatus struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"size:6;not null;uniqueIndex:idx_code_content"`
	ContentType string    `json:"content_type" gorm:"size:16;not null;uniqueIndex:idx_code_content"`
	Status      string    `json:"status" gorm:"size:16"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
	Score       float64   `json:"score"`
	TotalCount  int       `json:"total_count"`
}

func (CrawlStatus) TableName() string { return "crawl_progress" }

// StockRef is one entry of the entity universe. Loaded once per run,
// append-only from the crawler's perspective.
type StockRef struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Code        string `json:"code" gorm:"size:6;uniqueIndex;not null"`
	DisplayName string `json:"display_name" gorm:"size:64"`
}

func (StockRef) TableName() string { return "entity_reference" }

// SentimentScore is the per-stock daily aggregate over all analyzed items.
type SentimentScore struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	CreatedAt         time.Time `json:"created_at"`
	Code              string    `json:"code" gorm:"size:6;not null;uniqueIndex:idx_score_code_date"`
	Date              string    `json:"date" gorm:"size:10;not null;uniqueIndex:idx_score_code_date"`
	NewsScore         *float64  `json:"news_score"`
	AnnouncementScore *float64  `json:"announcement_score"`
	CommentScore      *float64  `json:"comment_score"`
	ReportScore       *float64  `json:"report_score"`
	OverallScore      float64   `json:"overall_score"`
	AnalysisSummary   string    `json:"analysis_summary" gorm:"size:512"`
}

func (SentimentScore) TableName() string { return "stock_sentiment_scores" }
