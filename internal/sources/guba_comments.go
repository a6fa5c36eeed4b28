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

const gubaBaseURL = "https://guba.eastmoney.com"

// GubaCommentSource scrapes investor comments from the EastMoney guba
// message board. Comment titles double as content when the board only
// renders a one-line preview.
type GubaCommentSource struct {
	client  *resty.Client
	baseURL string
	limit   int
}

func NewGubaCommentSource(timeout time.Duration) *GubaCommentSource {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	return &GubaCommentSource{
		client:  client,
		baseURL: gubaBaseURL,
		limit:   30,
	}
}

func (g *GubaCommentSource) Name() string { return "GubaComments" }

func (g *GubaCommentSource) ContentType() models.ContentType { return models.ContentComment }

func (g *GubaCommentSource) Fetch(ctx context.Context, code string) []models.InfoItem {
	url := fmt.Sprintf("%s/list,%s.html", g.baseURL, code)

	resp, err := g.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[guba] %s request failed: %v", code, err)
		return nil
	}

	return parseGubaComments(resp.Body(), code, g.Name(), g.baseURL, g.limit)
}

func parseGubaComments(body []byte, code, source, baseURL string, limit int) []models.InfoItem {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Printf("[guba] %s bad html: %v", code, err)
		return nil
	}

	var items []models.InfoItem
	doc.Find("tr.listitem").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("div.title a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		if strings.HasPrefix(href, "/") {
			href = baseURL + href
		}
		published := strings.TrimSpace(sel.Find("div.update").First().Text())

		items = append(items, models.InfoItem{
			Code:        code,
			Title:       title,
			Content:     title,
			Source:      source,
			PublishDate: published,
			URL:         href,
			Fingerprint: dedup.Fingerprint(title, title, source),
		})
		return len(items) < limit
	})
	return items
}
