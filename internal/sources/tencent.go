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

const tencentBaseURL = "https://web.ifzq.gtimg.cn"

// TencentSource fetches forward-adjusted daily klines from the Tencent
// finance API. This is the primary price source.
type TencentSource struct {
	client  *resty.Client
	baseURL string
}

func NewTencentSource(timeout time.Duration) *TencentSource {
	client := resty.New()
	client.SetTimeout(timeout)

	return &TencentSource{
		client:  client,
		baseURL: tencentBaseURL,
	}
}

func (t *TencentSource) Name() string { return "Tencent" }

// Fetch requests the single-day qfq kline for the target date. The kline
// rows come back as [date, open, close, high, low, volume, ...].
func (t *TencentSource) Fetch(ctx context.Context, code, date string) *models.MarketRecord {
	symbol := MarketSymbol(code)
	url := fmt.Sprintf("%s/appstock/app/fqkline/get?param=%s,day,%s,%s,640,qfq",
		t.baseURL, symbol, date, date)

	resp, err := t.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[tencent] %s request failed: %v", code, err)
		return nil
	}

	var body struct {
		Code int `json:"code"`
		Data map[string]struct {
			QfqDay [][]any `json:"qfqday"`
			Day    [][]any `json:"day"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		log.Printf("[tencent] %s bad response: %v", code, err)
		return nil
	}
	if body.Code != 0 {
		return nil
	}

	entry, ok := body.Data[symbol]
	if !ok {
		return nil
	}
	rows := entry.QfqDay
	if len(rows) == 0 {
		rows = entry.Day
	}

	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		fields := make([]string, 0, 6)
		valid := true
		for _, v := range row[:6] {
			s, ok := v.(string)
			if !ok {
				valid = false
				break
			}
			fields = append(fields, s)
		}
		if !valid || fields[0] != date {
			continue
		}

		return &models.MarketRecord{
			Code:   code,
			Date:   date,
			Open:   parseFloat(fields[1]),
			Close:  parseFloat(fields[2]),
			High:   parseFloat(fields[3]),
			Low:    parseFloat(fields[4]),
			Volume: parseInt(fields[5]),
		}
	}
	return nil
}
