package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riching/stock-scraper/internal/models"
)

func chatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"content":` + answer + `}}]}`))
	}))
}

func testItem() models.InfoItem {
	return models.InfoItem{Code: "600519", Title: "年度报告", Content: "业绩大幅增长"}
}

func TestClassifyParsesVerdict(t *testing.T) {
	srv := chatServer(t, `"{\"is_valid\": true, \"sentiment_score\": 8.5, \"analysis\": \"强利好\"}"`)
	defer srv.Close()

	a := New("test-key", "qwen3-max")
	a.baseURL = srv.URL

	v := a.Classify(context.Background(), "贵州茅台", testItem())
	assert.True(t, v.IsValid)
	assert.Equal(t, 8.5, v.Score)
	assert.Equal(t, "强利好", v.Analysis)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	srv := chatServer(t, `"`+"```json\\n{\\\"is_valid\\\": false, \\\"sentiment_score\\\": 3.0, \\\"analysis\\\": \\\"无关\\\"}\\n```"+`"`)
	defer srv.Close()

	a := New("test-key", "qwen3-max")
	a.baseURL = srv.URL

	v := a.Classify(context.Background(), "贵州茅台", testItem())
	assert.False(t, v.IsValid)
	assert.Equal(t, 3.0, v.Score)
}

func TestClassifyClampsScore(t *testing.T) {
	v := parseVerdict(`{"is_valid": true, "sentiment_score": 14.0, "analysis": ""}`, "600519")
	assert.Equal(t, 10.0, v.Score)

	v = parseVerdict(`{"is_valid": true, "sentiment_score": -2.0, "analysis": ""}`, "600519")
	assert.Equal(t, 0.0, v.Score)
}

func TestClassifyFallsBackToNeutral(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"non-json answer", `{"choices":[{"message":{"content":"看涨"}}]}`},
		{"api error", `{"error":{"message":"quota exceeded"}}`},
		{"empty choices", `{"choices":[]}`},
		{"broken body", `<html>502</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a := New("test-key", "qwen3-max")
			a.baseURL = srv.URL

			v := a.Classify(context.Background(), "贵州茅台", testItem())
			assert.Equal(t, NeutralVerdict(), v)
		})
	}
}

func TestClassifyTransportFailureIsNeutral(t *testing.T) {
	a := New("test-key", "qwen3-max")
	a.baseURL = "http://127.0.0.1:1"

	v := a.Classify(context.Background(), "贵州茅台", testItem())
	assert.Equal(t, NeutralVerdict(), v)
}

func TestOverallScoreWeights(t *testing.T) {
	scores := map[models.ContentType]float64{
		models.ContentNews:         8.0,
		models.ContentAnnouncement: 6.0,
		models.ContentComment:      4.0,
		models.ContentReport:       7.0,
	}
	// 8*0.30 + 6*0.25 + 4*0.20 + 7*0.25 = 6.45
	assert.Equal(t, 6.45, OverallScore(scores))
}

func TestOverallScoreRenormalizesMissingCategories(t *testing.T) {
	scores := map[models.ContentType]float64{
		models.ContentNews:    8.0,
		models.ContentComment: 4.0,
	}
	// (8*0.30 + 4*0.20) / 0.50 = 6.4
	assert.Equal(t, 6.4, OverallScore(scores))
}

func TestOverallScoreDefaultsNeutral(t *testing.T) {
	assert.Equal(t, 5.0, OverallScore(nil))
	assert.Equal(t, 5.0, OverallScore(map[models.ContentType]float64{}))
}

func TestCategoryAverageSkipsInvalid(t *testing.T) {
	items := []models.InfoItem{
		{IsValid: true, SentimentScore: 8.0},
		{IsValid: false, SentimentScore: 1.0},
		{IsValid: true, SentimentScore: 6.0},
	}

	avg, ok := CategoryAverage(items)
	assert.True(t, ok)
	assert.Equal(t, 7.0, avg)

	_, ok = CategoryAverage([]models.InfoItem{{IsValid: false, SentimentScore: 2.0}})
	assert.False(t, ok)
}
