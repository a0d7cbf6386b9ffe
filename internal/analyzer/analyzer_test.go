package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/marketbrief/marketbrief/internal/datasource"
	"github.com/marketbrief/marketbrief/internal/llm"
	"github.com/marketbrief/marketbrief/internal/prompt"
	"github.com/marketbrief/marketbrief/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Fakes
// ════════════════════════════════════════════════════════════════════

type fakeQuotes struct {
	quote *models.Quote
	err   error
}

func (f *fakeQuotes) FetchQuote(_ context.Context, _ string) (*models.Quote, error) {
	return f.quote, f.err
}

type fakeNews struct {
	items []models.NewsItem
	err   error
}

func (f *fakeNews) FetchNews(_ context.Context, _ string) ([]models.NewsItem, error) {
	return f.items, f.err
}

type fakeGen struct {
	out     string
	err     error
	prompts []string
	opts    []*llm.GenerateOptions
}

func (f *fakeGen) Generate(_ context.Context, p string, opts *llm.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, p)
	f.opts = append(f.opts, opts)
	return f.out, f.err
}

func (f *fakeGen) Model() string                { return "llama3.2:1b" }
func (f *fakeGen) Ping(_ context.Context) error { return nil }

type fakeExtractor struct {
	doc *models.DocumentText
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (*models.DocumentText, error) {
	return f.doc, f.err
}

func newTestAnalyzer(q *fakeQuotes, n *fakeNews, g *fakeGen, e *fakeExtractor) *Analyzer {
	if q == nil {
		q = &fakeQuotes{quote: &models.Quote{Ticker: "AAPL"}}
	}
	if n == nil {
		n = &fakeNews{}
	}
	if g == nil {
		g = &fakeGen{out: "Looks stable. Sentiment: Neutral"}
	}
	if e == nil {
		e = &fakeExtractor{doc: &models.DocumentText{PageCount: 1, Text: "body"}}
	}
	return New(q, n, g, e)
}

// ════════════════════════════════════════════════════════════════════
// Sentiment normalization
// ════════════════════════════════════════════════════════════════════

func TestExtractSentiment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Sentiment
	}{
		{"positive", "The outlook is Positive overall.", models.SentimentPositive},
		{"bullish alias", "Analysts remain bullish on the stock.", models.SentimentPositive},
		{"negative", "A negative quarter for the company.", models.SentimentNegative},
		{"bearish alias", "The tone is decidedly BEARISH.", models.SentimentNegative},
		{"positive wins over negative", "Positive momentum despite negative press.", models.SentimentPositive},
		{"neither", "Revenue was flat year over year.", models.SentimentNeutral},
		{"empty", "", models.SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSentiment(tt.text); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanSummary(t *testing.T) {
	if got := CleanSummary("  padded text \n"); got != "padded text" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("lorem ipsum ", 2000)
	got := CleanSummary(long)
	if len(got) > MaxSummaryLen {
		t.Errorf("length %d exceeds cap %d", len(got), MaxSummaryLen)
	}
	if strings.HasSuffix(got, " ") {
		t.Error("capped summary should be trimmed")
	}
}

// ════════════════════════════════════════════════════════════════════
// AnalyzeTicker
// ════════════════════════════════════════════════════════════════════

func TestAnalyzeTicker(t *testing.T) {
	q := &fakeQuotes{quote: &models.Quote{Ticker: "AAPL", Name: "Apple Inc.", CurrentPrice: models.Float(187.5)}}
	n := &fakeNews{items: []models.NewsItem{{Title: "Apple ships new chip"}}}
	g := &fakeGen{out: "  Strong quarter ahead. Sentiment: Positive  "}
	a := newTestAnalyzer(q, n, g, nil)

	res, err := a.AnalyzeTicker(context.Background(), "aapl ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SubjectID != "AAPL" {
		t.Errorf("subject: got %q", res.SubjectID)
	}
	if res.Sentiment != models.SentimentPositive {
		t.Errorf("sentiment: got %q", res.Sentiment)
	}
	if strings.HasPrefix(res.Summary, " ") || strings.HasSuffix(res.Summary, " ") {
		t.Error("summary should be trimmed")
	}
	if res.Quote == nil || res.Quote.Name != "Apple Inc." {
		t.Errorf("quote missing from result: %+v", res.Quote)
	}
	if len(res.News) != 1 {
		t.Errorf("news missing from result: %+v", res.News)
	}
	if len(g.prompts) != 1 || !strings.Contains(g.prompts[0], "Apple ships new chip") {
		t.Error("headline not folded into prompt")
	}
	if g.opts[0].MaxTokens != prompt.StockMaxTokens {
		t.Errorf("max tokens: got %d", g.opts[0].MaxTokens)
	}
}

func TestAnalyzeTickerInvalid(t *testing.T) {
	a := newTestAnalyzer(nil, nil, nil, nil)
	for _, ticker := range []string{"", "TOOLONGTICKER", "AA PL", "AA$"} {
		_, err := a.AnalyzeTicker(context.Background(), ticker)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("ticker %q: expected ValidationError, got %v", ticker, err)
		}
	}
}

func TestAnalyzeTickerNotFound(t *testing.T) {
	q := &fakeQuotes{err: datasource.NewProviderError("yahoo", datasource.KindNotFound, fmt.Errorf("no such ticker"))}
	g := &fakeGen{out: "should not run"}
	a := newTestAnalyzer(q, nil, g, nil)

	_, err := a.AnalyzeTicker(context.Background(), "ZZZZZZ")
	if !datasource.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if len(g.prompts) != 0 {
		t.Error("generation must not run for unknown tickers")
	}
}

func TestAnalyzeTickerPartialData(t *testing.T) {
	q := &fakeQuotes{err: fmt.Errorf("quote: %w", datasource.ErrDataUnavailable)}
	n := &fakeNews{err: fmt.Errorf("news: %w", datasource.ErrDataUnavailable)}
	g := &fakeGen{out: "Uncertain picture. Sentiment: Neutral"}
	a := newTestAnalyzer(q, n, g, nil)

	res, err := a.AnalyzeTicker(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("partial data should still analyze, got %v", err)
	}
	if res.Quote != nil {
		t.Error("quote should be absent")
	}
	if len(res.News) != 0 {
		t.Error("news should be empty")
	}
	if !strings.Contains(g.prompts[0], "N/A") {
		t.Error("prompt should carry N/A placeholders")
	}
}

func TestAnalyzeTickerNewsCapped(t *testing.T) {
	items := make([]models.NewsItem, 9)
	for i := range items {
		items[i] = models.NewsItem{Title: fmt.Sprintf("headline %d", i)}
	}
	n := &fakeNews{items: items}
	a := newTestAnalyzer(nil, n, nil, nil)

	res, err := a.AnalyzeTicker(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.News) != 5 {
		t.Errorf("got %d items, want 5", len(res.News))
	}
}

func TestAnalyzeTickerGenerationFailure(t *testing.T) {
	g := &fakeGen{err: llm.ErrTimeout}
	a := newTestAnalyzer(nil, nil, g, nil)

	_, err := a.AnalyzeTicker(context.Background(), "AAPL")
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// AnalyzeDocument
// ════════════════════════════════════════════════════════════════════

func TestAnalyzeDocument(t *testing.T) {
	e := &fakeExtractor{doc: &models.DocumentText{PageCount: 3, Text: "annual report body"}}
	g := &fakeGen{out: "Solid fundamentals. Sentiment: Positive"}
	a := newTestAnalyzer(nil, nil, g, e)

	res, err := a.AnalyzeDocument(context.Background(), "report.pdf", []byte("%PDF-"), prompt.TaskSummary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SubjectType != models.SubjectDocument || res.SubjectID != "report.pdf" {
		t.Errorf("subject: %+v", res)
	}
	if res.PageCount != 3 {
		t.Errorf("page count: got %d", res.PageCount)
	}
	if !strings.Contains(g.prompts[0], "annual report body") {
		t.Error("document text not in prompt")
	}
	if g.opts[0].MaxTokens != prompt.DocumentMaxTokens {
		t.Errorf("max tokens: got %d", g.opts[0].MaxTokens)
	}
}

func TestAnalyzeDocumentValidation(t *testing.T) {
	a := newTestAnalyzer(nil, nil, nil, nil)

	tests := []struct {
		name string
		data []byte
		task prompt.DocumentTask
	}{
		{"empty file", nil, prompt.TaskSummary},
		{"oversized file", make([]byte, MaxDocumentBytes+1), prompt.TaskSummary},
		{"unknown task", []byte("%PDF-"), "poetry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.AnalyzeDocument(context.Background(), "f.pdf", tt.data, tt.task)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestAnalyzeDocumentExtractionFailure(t *testing.T) {
	wantErr := fmt.Errorf("boom")
	e := &fakeExtractor{err: wantErr}
	a := newTestAnalyzer(nil, nil, nil, e)

	_, err := a.AnalyzeDocument(context.Background(), "f.pdf", []byte("%PDF-"), prompt.TaskSummary)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected extractor error, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// AnalyzeDocumentWithStock
// ════════════════════════════════════════════════════════════════════

func TestAnalyzeDocumentWithStock(t *testing.T) {
	q := &fakeQuotes{quote: &models.Quote{Ticker: "TSLA", CurrentPrice: models.Float(250)}}
	e := &fakeExtractor{doc: &models.DocumentText{PageCount: 2, Text: "earnings beat"}}
	g := &fakeGen{out: "Bullish for TSLA."}
	a := newTestAnalyzer(q, nil, g, e)

	res, err := a.AnalyzeDocumentWithStock(context.Background(), "earnings.pdf", []byte("%PDF-"), "tsla")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sentiment != models.SentimentPositive {
		t.Errorf("sentiment: got %q", res.Sentiment)
	}
	if res.Quote == nil {
		t.Error("quote missing from result")
	}
	if !strings.Contains(g.prompts[0], "in relation to TSLA stock") {
		t.Error("ticker context missing from prompt")
	}
}

func TestAnalyzeDocumentWithStockUnknownTicker(t *testing.T) {
	q := &fakeQuotes{err: datasource.NewProviderError("yahoo", datasource.KindNotFound, fmt.Errorf("nope"))}
	g := &fakeGen{out: "should not run"}
	a := newTestAnalyzer(q, nil, g, nil)

	_, err := a.AnalyzeDocumentWithStock(context.Background(), "f.pdf", []byte("%PDF-"), "ZZZZZZ")
	if !datasource.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if len(g.prompts) != 0 {
		t.Error("generation must not run for unknown tickers")
	}
}

func TestAnalyzeDocumentWithStockQuoteDegrades(t *testing.T) {
	q := &fakeQuotes{err: fmt.Errorf("quote: %w", datasource.ErrDataUnavailable)}
	g := &fakeGen{out: "ok"}
	a := newTestAnalyzer(q, nil, g, nil)

	res, err := a.AnalyzeDocumentWithStock(context.Background(), "f.pdf", []byte("%PDF-"), "AAPL")
	if err != nil {
		t.Fatalf("quote outage should degrade, got %v", err)
	}
	if res.Quote != nil {
		t.Error("quote should be absent")
	}
	if !strings.Contains(g.prompts[0], "$N/A") {
		t.Error("prompt should carry the N/A placeholder")
	}
}

// ════════════════════════════════════════════════════════════════════
// SummarizeText
// ════════════════════════════════════════════════════════════════════

func TestSummarizeText(t *testing.T) {
	g := &fakeGen{out: " A concise summary. "}
	a := newTestAnalyzer(nil, nil, g, nil)

	got, err := a.SummarizeText(context.Background(), "long article text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "A concise summary." {
		t.Errorf("got %q", got)
	}
	if g.opts[0].MaxTokens != prompt.SummarizeMaxTokens {
		t.Errorf("max tokens: got %d", g.opts[0].MaxTokens)
	}
}

func TestSummarizeTextEmpty(t *testing.T) {
	a := newTestAnalyzer(nil, nil, nil, nil)
	_, err := a.SummarizeText(context.Background(), "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestClassifySentiment(t *testing.T) {
	g := &fakeGen{out: "Positive"}
	a := newTestAnalyzer(nil, nil, g, nil)

	got, err := a.ClassifySentiment(context.Background(), "Shares rallied on record revenue.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.SentimentPositive {
		t.Errorf("got %q", got)
	}
	if g.opts[0].MaxTokens != prompt.SentimentMaxTokens {
		t.Errorf("max tokens: got %d", g.opts[0].MaxTokens)
	}
	if !strings.Contains(g.prompts[0], "Shares rallied") {
		t.Errorf("prompt missing input text: %q", g.prompts[0])
	}
}

func TestClassifySentimentEmpty(t *testing.T) {
	a := newTestAnalyzer(nil, nil, nil, nil)
	_, err := a.ClassifySentiment(context.Background(), "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
