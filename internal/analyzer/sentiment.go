package analyzer

import (
	"math"

	"github.com/riching/stock-scraper/internal/models"
)

// Category weights for the overall score. Missing categories drop out and
// the remaining weights are renormalized.
var categoryWeights = map[models.ContentType]float64{
	models.ContentNews:         0.30,
	models.ContentAnnouncement: 0.25,
	models.ContentComment:      0.20,
	models.ContentReport:       0.25,
}

// OverallScore folds per-category average scores into one stock score,
// rounded to two decimals. With no category data at all the stock is
// neutral, 5.0.
func OverallScore(categoryScores map[models.ContentType]float64) float64 {
	var weighted, total float64
	for ct, score := range categoryScores {
		w, ok := categoryWeights[ct]
		if !ok {
			continue
		}
		weighted += score * w
		total += w
	}
	if total == 0 {
		return 5.0
	}
	return math.Round(weighted/total*100) / 100
}

// CategoryAverage averages the scores of valid items only. It returns
// false when no item in the batch was valid.
func CategoryAverage(items []models.InfoItem) (float64, bool) {
	var sum float64
	var n int
	for _, item := range items {
		if !item.IsValid {
			continue
		}
		sum += item.SentimentScore
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
