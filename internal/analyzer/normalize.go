package analyzer

import (
	"strings"

	"github.com/marketbrief/marketbrief/pkg/models"
)

// ExtractSentiment derives the sentiment label from generated text.
// Positive cues win over negative ones when both appear; text with
// neither reads as Neutral.
func ExtractSentiment(text string) models.Sentiment {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "positive") || strings.Contains(lower, "bullish") {
		return models.SentimentPositive
	}
	if strings.Contains(lower, "negative") || strings.Contains(lower, "bearish") {
		return models.SentimentNegative
	}
	return models.SentimentNeutral
}

// MaxSummaryLen bounds a stored summary. Token limits on the generator
// are hints, not byte bounds, so a runaway model is capped here.
const MaxSummaryLen = 8000

// CleanSummary trims the generated text for presentation and caps its
// length.
func CleanSummary(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > MaxSummaryLen {
		text = strings.TrimSpace(text[:MaxSummaryLen])
	}
	return text
}
