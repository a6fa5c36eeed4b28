package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/riching/stock-scraper/internal/models"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource is the last-resort price source, via the Yahoo Finance chart
// API. It does not cover Beijing listings.
type YahooSource struct {
	client  *resty.Client
	baseURL string
}

func NewYahooSource(timeout time.Duration) *YahooSource {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	return &YahooSource{
		client:  client,
		baseURL: yahooBaseURL,
	}
}

func (y *YahooSource) Name() string { return "Yahoo" }

func (y *YahooSource) Fetch(ctx context.Context, code, date string) *models.MarketRecord {
	symbol := YahooSymbol(code)
	if symbol == "" {
		return nil
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	// The chart API range is half-open, so ask for one full day.
	from := day.Unix()
	to := day.Add(24 * time.Hour).Unix()

	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		y.baseURL, symbol, from, to)

	resp, err := y.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[yahoo] %s request failed: %v", code, err)
		return nil
	}

	var body struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []float64 `json:"open"`
						High   []float64 `json:"high"`
						Low    []float64 `json:"low"`
						Close  []float64 `json:"close"`
						Volume []int64   `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		log.Printf("[yahoo] %s bad response: %v", code, err)
		return nil
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil
	}

	result := body.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	for i, ts := range result.Timestamp {
		if time.Unix(ts, 0).Format("2006-01-02") != date {
			continue
		}
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		rec := &models.MarketRecord{
			Code:  code,
			Date:  date,
			Open:  quote.Open[i],
			High:  quote.High[i],
			Low:   quote.Low[i],
			Close: quote.Close[i],
		}
		if i < len(quote.Volume) {
			rec.Volume = quote.Volume[i]
		}
		return rec
	}
	return nil
}
