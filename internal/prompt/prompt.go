// Package prompt builds the fixed prompt templates fed to the
// generation layer. Input text is truncated head-first to stay inside
// the small model's context window.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marketbrief/marketbrief/pkg/models"
)

// DocumentTask selects the analysis angle for document prompts.
type DocumentTask string

const (
	TaskSummary   DocumentTask = "summary"
	TaskSentiment DocumentTask = "sentiment"
	TaskFinancial DocumentTask = "financial"
	TaskCustom    DocumentTask = "custom"
)

// ValidDocumentTask reports whether t is a recognized analysis type.
func ValidDocumentTask(t DocumentTask) bool {
	switch t {
	case TaskSummary, TaskSentiment, TaskFinancial, TaskCustom:
		return true
	}
	return false
}

// Character budgets per prompt kind. A document on its own gets more
// room than one that shares the window with stock context.
const (
	DocumentBudget     = 4000
	StockContextBudget = 3000
	SummarizeBudget    = 1000
	SentimentBudget    = 500

	truncationMarker = "\n\n[... truncated ...]"
)

// Token caps passed to the generator per prompt kind.
const (
	StockMaxTokens     = 300
	DocumentMaxTokens  = 500
	SummarizeMaxTokens = 150
	SentimentMaxTokens = 10
)

// Truncate cuts text to at most budget characters, keeping the head
// and appending a marker when anything was dropped.
func Truncate(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	return text[:budget] + truncationMarker
}

// ForStock builds the analyst prompt for a ticker, folding in the
// quote and up to five recent headlines.
func ForStock(ticker string, quote *models.Quote, news []models.NewsItem) string {
	newsText := "No recent news available."
	if len(news) > 0 {
		lines := make([]string, 0, 5)
		for i, item := range news {
			if i == 5 {
				break
			}
			lines = append(lines, "- "+item.Title)
		}
		newsText = strings.Join(lines, "\n")
	}

	company := ticker
	price, change := "N/A", "N/A"
	if quote != nil {
		if quote.Name != "" {
			company = quote.Name
		}
		if v, ok := quote.Price(); ok {
			price = formatNumber(v)
		}
		if v, ok := quote.Change(); ok {
			change = formatNumber(v)
		}
	}

	return fmt.Sprintf(`You are a financial analyst. Analyze this stock briefly.

Ticker: %s
Company: %s
Current Price: $%s
Change: %s%%

Recent News:
%s

Provide:
1. Brief analysis (2-3 sentences)
2. Sentiment (Positive/Neutral/Negative)

Keep it concise and factual.`, ticker, company, price, change, newsText)
}

// ForDocument builds a document analysis prompt for the given task.
// The text is truncated to DocumentBudget before templating.
func ForDocument(task DocumentTask, text string) string {
	text = Truncate(text, DocumentBudget)
	switch task {
	case TaskSummary:
		return fmt.Sprintf(`Analyze this document and provide a concise summary (3-5 sentences):

%s

Summary:`, text)
	case TaskSentiment:
		return fmt.Sprintf(`Analyze the sentiment and tone of this document. Is it positive, negative, or neutral? Explain briefly.

%s

Sentiment Analysis:`, text)
	case TaskFinancial:
		return fmt.Sprintf(`This appears to be a financial document. Extract key insights:
1. Main topics/companies mentioned
2. Financial metrics or numbers
3. Overall implications

%s

Financial Analysis:`, text)
	default:
		return fmt.Sprintf(`Analyze this document and provide key insights:

%s

Analysis:`, text)
	}
}

// ForDocumentWithStock builds a prompt relating a document to a
// specific ticker. ticker must be non-empty; the caller validates it.
func ForDocumentWithStock(text, ticker string, quote *models.Quote) string {
	if ticker == "" {
		panic("prompt: empty ticker for stock-context prompt")
	}
	text = Truncate(text, StockContextBudget)

	price, change := "N/A", "N/A"
	if quote != nil {
		if v, ok := quote.Price(); ok {
			price = formatNumber(v)
		}
		if v, ok := quote.Change(); ok {
			change = formatNumber(v)
		}
	}

	return fmt.Sprintf(`Analyze this document in relation to %s stock:

Stock Info:
- Ticker: %s
- Current Price: $%s
- Change: %s%%

Document Content:
%s

Provide:
1. How does this document relate to %s?
2. Key takeaways for investors
3. Potential impact on stock price (positive/negative/neutral)

Analysis:`, ticker, ticker, price, change, text, ticker)
}

// ForSummarize builds a short plain-text summarization prompt.
func ForSummarize(text string) string {
	return fmt.Sprintf(`Summarize this text in 2-3 sentences:

%s

Summary:`, Truncate(text, SummarizeBudget))
}

// ForSentiment builds a one-word sentiment classification prompt.
func ForSentiment(text string) string {
	return fmt.Sprintf(`Analyze the sentiment of this text. Reply with only one word: Positive, Negative, or Neutral.

Text: %s

Sentiment:`, Truncate(text, SentimentBudget))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
