package sources

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/riching/stock-scraper/internal/models"
)

// EastMoneySource scrapes the rendered EastMoney quote page with a headless
// browser. The quote page is JavaScript-built, so a plain HTTP fetch sees
// only placeholders. Like the realtime feeds it covers the current trading
// day only.
type EastMoneySource struct {
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	today       func() string
}

func NewEastMoneySource(timeout time.Duration) *EastMoneySource {
	return &EastMoneySource{
		timeout: timeout,
		today:   func() string { return time.Now().Format("2006-01-02") },
	}
}

func (e *EastMoneySource) Name() string { return "EastMoney" }

// Init starts the shared browser session. One browser serves all fetches of
// a worker; per-stock tabs are too expensive at universe scale.
func (e *EastMoneySource) Init(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Launch the browser now so a broken chrome install fails Init, not
	// the first Fetch.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	e.allocCancel = allocCancel
	e.browserCtx = browserCtx
	e.cancel = cancel
	return nil
}

func (e *EastMoneySource) Close() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.allocCancel != nil {
		e.allocCancel()
		e.allocCancel = nil
	}
}

var quoteFieldRe = regexp.MustCompile(
	`"f43":([\d.]+).*?"f44":([\d.]+).*?"f45":([\d.]+).*?"f46":([\d.]+).*?"f47":(\d+)`)

func (e *EastMoneySource) Fetch(ctx context.Context, code, date string) *models.MarketRecord {
	if date != e.today() || e.browserCtx == nil {
		return nil
	}

	url := fmt.Sprintf("https://quote.eastmoney.com/%s.html", MarketSymbol(code))

	tabCtx, cancel := context.WithTimeout(e.browserCtx, e.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		log.Printf("[eastmoney] %s render failed: %v", code, err)
		return nil
	}

	return parseEastMoneyQuote(html, code, date)
}

// parseEastMoneyQuote pulls the embedded quote blob out of the rendered
// page: f43 current, f44 high, f45 low, f46 open, f47 volume.
func parseEastMoneyQuote(html, code, date string) *models.MarketRecord {
	m := quoteFieldRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}

	return &models.MarketRecord{
		Code:   code,
		Date:   date,
		Close:  parseFloat(m[1]),
		High:   parseFloat(m[2]),
		Low:    parseFloat(m[3]),
		Open:   parseFloat(m[4]),
		Volume: parseInt(m[5]),
	}
}
