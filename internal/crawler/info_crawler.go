package crawler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/riching/stock-scraper/internal/analyzer"
	"github.com/riching/stock-scraper/internal/dedup"
	"github.com/riching/stock-scraper/internal/models"
	"github.com/riching/stock-scraper/internal/progress"
	"github.com/riching/stock-scraper/internal/sources"
	"github.com/riching/stock-scraper/internal/validate"
)

// scoreLookbackDays is how far back an existing overall score keeps a stock
// off the info crawl.
const scoreLookbackDays = 30

// noCategoryScore marks a crawl pass that produced no scored items. A real
// average is never negative, so the store can tell the two apart.
const noCategoryScore = -1.0

// infoStore is the slice of the database layer the info crawl touches.
type infoStore interface {
	FingerprintExists(fingerprint string, contentType models.ContentType) (bool, error)
	InsertInfoItems(contentType models.ContentType, items []models.InfoItem) (int, error)
	SaveSentimentScore(score *models.SentimentScore) error
	RecentOverallScore(code string, lookbackDays int) (float64, error)
	ShouldCrawlContent(code string, contentType models.ContentType) (bool, error)
	UpdateCrawlStatus(code string, contentType models.ContentType, status string, itemCount int, score float64) error
}

// classifier scores one item. The production implementation is the
// DashScope analyzer.
type classifier interface {
	Classify(ctx context.Context, stockName string, item models.InfoItem) analyzer.Verdict
}

// InfoCrawlConfig carries the info crawl knobs.
type InfoCrawlConfig struct {
	Date         string
	Delay        time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// InfoCrawler fetches news, announcements and comments for one stock at a
// time, classifies the new items and persists per-category and overall
// sentiment.
type InfoCrawler struct {
	store    infoStore
	sources  []sources.InfoSource
	cls      classifier
	gate     *dedup.Gate
	policy   *validate.Policy
	progress *progress.Store
	cfg      InfoCrawlConfig
}

func NewInfoCrawler(store infoStore, srcs []sources.InfoSource, cls classifier, prog *progress.Store, cfg InfoCrawlConfig) *InfoCrawler {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	if cfg.Date == "" {
		cfg.Date = time.Now().Format("2006-01-02")
	}
	return &InfoCrawler{
		store:    store,
		sources:  srcs,
		cls:      cls,
		gate:     dedup.NewGate(store),
		policy:   validate.NewPolicy(),
		progress: prog,
		cfg:      cfg,
	}
}

// RunBatch processes the given stocks sequentially with retry and backoff.
// Progress is recorded per stock so an interrupted batch resumes where it
// stopped.
func (ic *InfoCrawler) RunBatch(ctx context.Context, codes []string) {
	for i, code := range codes {
		select {
		case <-ctx.Done():
			log.Printf("[infocrawler] cancelled after %d/%d stocks", i, len(codes))
			return
		default:
		}

		ic.processWithRetry(ctx, code)
		time.Sleep(ic.cfg.Delay)
	}
	log.Printf("[infocrawler] batch done, %s", ic.progress.GetSummary())
}

func (ic *InfoCrawler) processWithRetry(ctx context.Context, code string) {
	var lastErr error
	for attempt := 0; attempt < ic.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff keeps a struggling upstream from being hammered.
			time.Sleep(time.Duration(attempt) * ic.cfg.RetryBackoff)
		}

		score, skipped, err := ic.ProcessStock(ctx, code)
		if err == nil {
			if !skipped {
				ic.progress.MarkSuccess(code, score)
			}
			return
		}
		lastErr = err
		log.Printf("[infocrawler] %s attempt %d failed: %v", code, attempt+1, err)
	}
	ic.progress.MarkFailed(code, lastErr.Error())
}

// ProcessStock runs the full info pipeline for one stock. The skipped
// return is true when a recent overall score made the crawl unnecessary.
func (ic *InfoCrawler) ProcessStock(ctx context.Context, code string) (float64, bool, error) {
	if recent, err := ic.store.RecentOverallScore(code, scoreLookbackDays); err == nil && recent >= 0 {
		log.Printf("[infocrawler] %s has a recent score (%.2f), skipping", code, recent)
		return recent, true, nil
	}

	categoryScores := make(map[models.ContentType]float64)
	var totalSaved int

	for _, src := range ic.sources {
		ct := src.ContentType()
		if due, err := ic.store.ShouldCrawlContent(code, ct); err == nil && !due {
			continue
		}

		items := ic.collect(ctx, src, code)
		saved, err := ic.store.InsertInfoItems(ct, items)
		if err != nil {
			return 0, false, fmt.Errorf("persist %s items for %s: %w", ct, code, err)
		}
		totalSaved += saved

		statusScore := noCategoryScore
		if avg, ok := analyzer.CategoryAverage(items); ok {
			categoryScores[ct] = avg
			statusScore = avg
		}
		if err := ic.store.UpdateCrawlStatus(code, ct, progress.StatusSuccess, saved, statusScore); err != nil {
			log.Printf("[infocrawler] %s update %s status failed: %v", code, ct, err)
		}
	}

	overall := analyzer.OverallScore(categoryScores)
	score := buildSentimentScore(code, ic.cfg.Date, overall, categoryScores)
	if err := ic.store.SaveSentimentScore(score); err != nil {
		return 0, false, fmt.Errorf("save sentiment for %s: %w", code, err)
	}

	log.Printf("[infocrawler] %s done: %d new items, overall %.2f", code, totalSaved, overall)
	return overall, false, nil
}

// collect fetches, dedups, validates and classifies one category. Every
// step degrades softly; a broken source just contributes nothing.
func (ic *InfoCrawler) collect(ctx context.Context, src sources.InfoSource, code string) []models.InfoItem {
	items := dedup.FilterUnique(src.Fetch(ctx, code))

	fresh := items[:0]
	for _, item := range items {
		if !ic.policy.ValidInfoItem(&item) {
			continue
		}
		if !ic.gate.IsNew(item.Fingerprint, src.ContentType()) {
			continue
		}
		fresh = append(fresh, item)
	}

	for i := range fresh {
		verdict := ic.cls.Classify(ctx, "", fresh[i])
		fresh[i].IsValid = verdict.IsValid
		fresh[i].SentimentScore = verdict.Score
		fresh[i].Analysis = verdict.Analysis
	}
	return fresh
}

func buildSentimentScore(code, date string, overall float64, categoryScores map[models.ContentType]float64) *models.SentimentScore {
	score := &models.SentimentScore{
		Code:         code,
		Date:         date,
		OverallScore: overall,
	}
	if v, ok := categoryScores[models.ContentNews]; ok {
		score.NewsScore = &v
	}
	if v, ok := categoryScores[models.ContentAnnouncement]; ok {
		score.AnnouncementScore = &v
	}
	if v, ok := categoryScores[models.ContentComment]; ok {
		score.CommentScore = &v
	}
	if v, ok := categoryScores[models.ContentReport]; ok {
		score.ReportScore = &v
	}
	score.AnalysisSummary = fmt.Sprintf("aggregated from %d categories", len(categoryScores))
	return score
}
