package sources

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/riching/stock-scraper/internal/models"
)

const sinaQuoteBaseURL = "https://hq.sinajs.cn"

// SinaQuoteSource reads the Sina realtime quote feed. The feed only covers
// the current trading day, so it answers nil for any other target date.
type SinaQuoteSource struct {
	client  *resty.Client
	baseURL string
	today   func() string
}

func NewSinaQuoteSource(timeout time.Duration) *SinaQuoteSource {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Referer", "https://finance.sina.com.cn")

	return &SinaQuoteSource{
		client:  client,
		baseURL: sinaQuoteBaseURL,
		today:   func() string { return time.Now().Format("2006-01-02") },
	}
}

func (s *SinaQuoteSource) Name() string { return "SinaQuote" }

// Fetch parses the line protocol of hq.sinajs.cn:
//
//	var hq_str_sh600519="NAME,open,prevclose,current,high,low,...,volume,amount,...";
//
// The quote date at field 30 must match the target date as well, to guard
// against stale feeds on non-trading days.
func (s *SinaQuoteSource) Fetch(ctx context.Context, code, date string) *models.MarketRecord {
	if date != s.today() {
		return nil
	}

	symbol := MarketSymbol(code)
	url := fmt.Sprintf("%s/list=%s", s.baseURL, symbol)

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[sinaquote] %s request failed: %v", code, err)
		return nil
	}

	return parseSinaQuote(string(resp.Body()), code, date)
}

func parseSinaQuote(body, code, date string) *models.MarketRecord {
	start := strings.Index(body, `"`)
	end := strings.LastIndex(body, `"`)
	if start < 0 || end <= start {
		return nil
	}

	fields := strings.Split(body[start+1:end], ",")
	if len(fields) < 31 {
		return nil
	}
	if fields[30] != date {
		return nil
	}

	amount := parseFloat(fields[9])
	return &models.MarketRecord{
		Code:   code,
		Date:   date,
		Open:   parseFloat(fields[1]),
		Close:  parseFloat(fields[3]),
		High:   parseFloat(fields[4]),
		Low:    parseFloat(fields[5]),
		Volume: parseInt(fields[8]),
		Amount: &amount,
	}
}
