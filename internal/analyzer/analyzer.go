// Package analyzer classifies information items with a hosted LLM and
// aggregates per-category sentiment into one stock-level score.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/riching/stock-scraper/internal/models"
)

const dashscopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

const systemPrompt = `你是股票情绪分析助手。判断给定内容是否与该股票相关，并给出情绪评分。
只输出一个JSON对象，不要输出其他任何文字：
{"is_valid": true或false, "sentiment_score": 0到10的数字, "analysis": "一句话分析"}
0为极度利空，5为中性，10为极度利好。与该股票无关的内容is_valid为false。`

// Verdict is the classifier outcome for one item. Score is always within
// [0, 10].
type Verdict struct {
	IsValid  bool    `json:"is_valid"`
	Score    float64 `json:"sentiment_score"`
	Analysis string  `json:"analysis"`
}

// NeutralVerdict is what a failed classification degrades to: the item is
// kept and counted as neutral rather than dropped.
func NeutralVerdict() Verdict {
	return Verdict{IsValid: true, Score: 5.0}
}

// Analyzer calls the DashScope OpenAI-compatible chat endpoint.
type Analyzer struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	model   string
}

func New(apiKey, model string) *Analyzer {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Analyzer{
		client:  client,
		baseURL: dashscopeBaseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify scores one item. Any failure, transport, HTTP, or an answer
// that is not the requested JSON, degrades to the neutral verdict so a
// flaky classifier can never stall the pipeline.
func (a *Analyzer) Classify(ctx context.Context, stockName string, item models.InfoItem) Verdict {
	user := fmt.Sprintf("股票：%s（%s）\n标题：%s\n内容：%s", stockName, item.Code, item.Title, item.Content)

	req := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+a.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(a.baseURL + "/chat/completions")
	if err != nil {
		log.Printf("[analyzer] %s request failed: %v", item.Code, err)
		return NeutralVerdict()
	}

	var body chatResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		log.Printf("[analyzer] %s bad response: %v", item.Code, err)
		return NeutralVerdict()
	}
	if body.Error.Message != "" {
		log.Printf("[analyzer] %s api error: %s", item.Code, body.Error.Message)
		return NeutralVerdict()
	}
	if len(body.Choices) == 0 {
		return NeutralVerdict()
	}

	return parseVerdict(body.Choices[0].Message.Content, item.Code)
}

// parseVerdict decodes the model answer, tolerating markdown code fences
// around the JSON and clamping the score into [0, 10].
func parseVerdict(content, code string) Verdict {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v Verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		log.Printf("[analyzer] %s unparseable verdict: %v", code, err)
		return NeutralVerdict()
	}

	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 10 {
		v.Score = 10
	}
	return v
}
