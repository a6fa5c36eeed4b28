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

const sinaHistoryBaseURL = "https://quotes.sina.cn"

// SinaHistorySource fetches daily klines from the Sina market data service.
// It returns a window of recent days, so the target date is looked up in
// the returned slice.
type SinaHistorySource struct {
	client  *resty.Client
	baseURL string
}

func NewSinaHistorySource(timeout time.Duration) *SinaHistorySource {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Referer", "https://finance.sina.com.cn")

	return &SinaHistorySource{
		client:  client,
		baseURL: sinaHistoryBaseURL,
	}
}

func (s *SinaHistorySource) Name() string { return "SinaHistory" }

func (s *SinaHistorySource) Fetch(ctx context.Context, code, date string) *models.MarketRecord {
	symbol := MarketSymbol(code)
	url := fmt.Sprintf("%s/cn/api/json_v2.php/CN_MarketDataService.getKLineData?symbol=%s&scale=240&ma=no&datalen=60",
		s.baseURL, symbol)

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[sina] %s request failed: %v", code, err)
		return nil
	}

	var rows []struct {
		Day    string `json:"day"`
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		log.Printf("[sina] %s bad response: %v", code, err)
		return nil
	}

	for _, row := range rows {
		if row.Day != date {
			continue
		}
		return &models.MarketRecord{
			Code:   code,
			Date:   date,
			Open:   parseFloat(row.Open),
			High:   parseFloat(row.High),
			Low:    parseFloat(row.Low),
			Close:  parseFloat(row.Close),
			Volume: parseInt(row.Volume),
		}
	}
	return nil
}
