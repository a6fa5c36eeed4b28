package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/riching/stock-scraper/internal/dedup"
	"github.com/riching/stock-scraper/internal/models"
)

const announcementBaseURL = "https://np-anotice-stock.eastmoney.com"

// AnnouncementSource fetches company announcements from the EastMoney
// notice API.
type AnnouncementSource struct {
	client  *resty.Client
	baseURL string
	limit   int
}

func NewAnnouncementSource(timeout time.Duration) *AnnouncementSource {
	client := resty.New()
	client.SetTimeout(timeout)

	return &AnnouncementSource{
		client:  client,
		baseURL: announcementBaseURL,
		limit:   30,
	}
}

func (a *AnnouncementSource) Name() string { return "EastMoneyAnnouncements" }

func (a *AnnouncementSource) ContentType() models.ContentType { return models.ContentAnnouncement }

func (a *AnnouncementSource) Fetch(ctx context.Context, code string) []models.InfoItem {
	url := fmt.Sprintf("%s/api/security/ann?sr=-1&page_size=%d&page_index=1&ann_type=A&stock_list=%s",
		a.baseURL, a.limit, code)

	resp, err := a.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[announcements] %s request failed: %v", code, err)
		return nil
	}

	var body struct {
		Data struct {
			List []struct {
				Title      string `json:"title"`
				ArtCode    string `json:"art_code"`
				NoticeDate string `json:"notice_date"`
				Columns    []struct {
					ColumnName string `json:"column_name"`
				} `json:"columns"`
			} `json:"list"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		log.Printf("[announcements] %s bad response: %v", code, err)
		return nil
	}

	source := a.Name()
	items := make([]models.InfoItem, 0, len(body.Data.List))
	for _, ann := range body.Data.List {
		title := strings.TrimSpace(ann.Title)
		if title == "" {
			continue
		}

		// The API carries no body text; the category list is the most
		// useful content the classifier can get without a PDF fetch.
		categories := make([]string, 0, len(ann.Columns))
		for _, col := range ann.Columns {
			categories = append(categories, col.ColumnName)
		}
		content := title
		if len(categories) > 0 {
			content = fmt.Sprintf("%s [%s]", title, strings.Join(categories, "/"))
		}

		items = append(items, models.InfoItem{
			Code:        code,
			Title:       title,
			Content:     content,
			Source:      source,
			PublishDate: ann.NoticeDate,
			URL:         fmt.Sprintf("https://data.eastmoney.com/notices/detail/%s/%s.html", code, ann.ArtCode),
			Fingerprint: dedup.Fingerprint(title, content, source),
		})
	}
	return items
}
