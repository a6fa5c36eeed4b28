package sources

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/riching/stock-scraper/internal/dedup"
	"github.com/riching/stock-scraper/internal/models"
)

const sinaNewsBaseURL = "https://search.sina.com.cn"

// SinaNewsSource scrapes the Sina news search results for a stock code.
type SinaNewsSource struct {
	client  *resty.Client
	baseURL string
	limit   int
}

func NewSinaNewsSource(timeout time.Duration) *SinaNewsSource {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	return &SinaNewsSource{
		client:  client,
		baseURL: sinaNewsBaseURL,
		limit:   20,
	}
}

func (s *SinaNewsSource) Name() string { return "SinaNews" }

func (s *SinaNewsSource) ContentType() models.ContentType { return models.ContentNews }

func (s *SinaNewsSource) Fetch(ctx context.Context, code string) []models.InfoItem {
	url := fmt.Sprintf("%s/?q=%s&c=news&range=title&num=%d", s.baseURL, code, s.limit)

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[sinanews] %s request failed: %v", code, err)
		return nil
	}

	return parseSinaNews(resp.Body(), code, s.Name(), s.limit)
}

func parseSinaNews(body []byte, code, source string, limit int) []models.InfoItem {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Printf("[sinanews] %s bad html: %v", code, err)
		return nil
	}

	var items []models.InfoItem
	doc.Find("div.box-result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find("h2 a").First().Text())
		content := strings.TrimSpace(sel.Find("p.content").First().Text())
		href, _ := sel.Find("h2 a").First().Attr("href")
		published := strings.TrimSpace(sel.Find("span.fgray_time").First().Text())

		if title == "" || content == "" {
			return true
		}

		items = append(items, models.InfoItem{
			Code:        code,
			Title:       title,
			Content:     content,
			Source:      source,
			PublishDate: published,
			URL:         href,
			Fingerprint: dedup.Fingerprint(title, content, source),
		})
		return len(items) < limit
	})
	return items
}
