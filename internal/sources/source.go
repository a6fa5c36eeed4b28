// Package sources holds the upstream adapters. Price adapters return a
// single daily bar per stock, information adapters return batches of news,
// announcements or comments. Every upstream is flaky; adapters report
// absence instead of propagating transport errors.
package sources

import (
	"context"
	"strconv"

	"github.com/riching/stock-scraper/internal/models"
)

// PriceSource fetches the daily bar of one stock for a target date.
// A nil result means the source has nothing usable for that stock and
// date; the caller decides whether that is a retry or a terminal miss.
type PriceSource interface {
	Name() string
	Fetch(ctx context.Context, code, date string) *models.MarketRecord
}

// InfoSource fetches recent information items of one category for a stock.
// An empty slice means nothing new or a fetch failure; both are soft.
type InfoSource interface {
	Name() string
	ContentType() models.ContentType
	Fetch(ctx context.Context, code string) []models.InfoItem
}

// Initializer is implemented by adapters that hold expensive state, such
// as a browser session. The worker calls Init once before first use.
type Initializer interface {
	Init(ctx context.Context) error
}

// Closer releases adapter-held resources at shutdown.
type Closer interface {
	Close()
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some upstreams ship volumes as "12345.00".
		return int64(parseFloat(s))
	}
	return n
}
