// Package analyzer orchestrates a full analysis run: gather market
// data, build the prompt, call the generator and normalize its output
// into a fixed-vocabulary result.
package analyzer

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/marketbrief/marketbrief/internal/datasource"
	"github.com/marketbrief/marketbrief/internal/llm"
	"github.com/marketbrief/marketbrief/internal/prompt"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// MaxDocumentBytes caps uploaded document size at 10 MiB.
const MaxDocumentBytes = 10 << 20

// ValidationError reports rejected input. The detail is safe to show
// to callers.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// QuoteFetcher yields the latest quote for a ticker.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, ticker string) (*models.Quote, error)
}

// NewsFetcher yields recent headlines for a ticker.
type NewsFetcher interface {
	FetchNews(ctx context.Context, ticker string) ([]models.NewsItem, error)
}

// DocExtractor turns document bytes into text.
type DocExtractor interface {
	Extract(ctx context.Context, data []byte) (*models.DocumentText, error)
}

// Analyzer runs ticker and document analyses.
type Analyzer struct {
	quotes    QuoteFetcher
	news      NewsFetcher
	gen       llm.Generator
	extractor DocExtractor
	newsLimit int
}

// Option configures the analyzer.
type Option func(*Analyzer)

// WithNewsLimit caps the number of headlines carried into results.
func WithNewsLimit(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.newsLimit = n
		}
	}
}

// New creates an analyzer wired to the given data and generation
// backends.
func New(quotes QuoteFetcher, news NewsFetcher, gen llm.Generator, extractor DocExtractor, opts ...Option) *Analyzer {
	a := &Analyzer{
		quotes:    quotes,
		news:      news,
		gen:       gen,
		extractor: extractor,
		newsLimit: 5,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeTicker produces an analysis for a stock ticker. Quote and
// news fetches run concurrently; a quote that no provider recognizes
// fails the request, while exhausted providers or failed news degrade
// to a partial result.
func (a *Analyzer) AnalyzeTicker(ctx context.Context, ticker string) (*models.AnalysisResult, error) {
	ticker = utils.NormalizeTicker(ticker)
	if err := utils.ValidateTicker(ticker); err != nil {
		return nil, &ValidationError{Detail: err.Error()}
	}

	var (
		quote *models.Quote
		news  []models.NewsItem
	)
	g, gctx := errgroup.WithContext(ctx)
	var quoteErr error
	g.Go(func() error {
		q, err := a.quotes.FetchQuote(gctx, ticker)
		if err != nil {
			if datasource.IsNotFound(err) {
				// Unknown tickers fail the whole request.
				return err
			}
			quoteErr = err
			return nil
		}
		quote = q
		return nil
	})
	g.Go(func() error {
		items, err := a.news.FetchNews(gctx, ticker)
		if err != nil {
			log.Printf("analyzer: news for %s unavailable: %v", ticker, err)
			return nil
		}
		news = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if quoteErr != nil {
		log.Printf("analyzer: quote for %s unavailable: %v", ticker, quoteErr)
	}
	if len(news) > a.newsLimit {
		news = news[:a.newsLimit]
	}

	p := prompt.ForStock(ticker, quote, news)
	raw, err := a.gen.Generate(ctx, p, &llm.GenerateOptions{MaxTokens: prompt.StockMaxTokens})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", ticker, err)
	}

	return &models.AnalysisResult{
		SubjectType: models.SubjectTicker,
		SubjectID:   ticker,
		Summary:     CleanSummary(raw),
		Sentiment:   ExtractSentiment(raw),
		Quote:       quote,
		News:        news,
	}, nil
}

// AnalyzeDocument extracts text from a PDF and analyzes it under the
// given task.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, filename string, data []byte, task prompt.DocumentTask) (*models.AnalysisResult, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	if !prompt.ValidDocumentTask(task) {
		return nil, &ValidationError{Detail: fmt.Sprintf("unknown analysis type %q", task)}
	}

	doc, err := a.extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	p := prompt.ForDocument(task, doc.Text)
	raw, err := a.gen.Generate(ctx, p, &llm.GenerateOptions{MaxTokens: prompt.DocumentMaxTokens})
	if err != nil {
		return nil, fmt.Errorf("analyze document %s: %w", filename, err)
	}

	return &models.AnalysisResult{
		SubjectType: models.SubjectDocument,
		SubjectID:   filename,
		Summary:     CleanSummary(raw),
		Sentiment:   ExtractSentiment(raw),
		PageCount:   doc.PageCount,
	}, nil
}

// AnalyzeDocumentWithStock relates a PDF to a specific ticker. The
// quote is best-effort except for unknown tickers, which fail the
// request before any generation happens.
func (a *Analyzer) AnalyzeDocumentWithStock(ctx context.Context, filename string, data []byte, ticker string) (*models.AnalysisResult, error) {
	ticker = utils.NormalizeTicker(ticker)
	if err := utils.ValidateTicker(ticker); err != nil {
		return nil, &ValidationError{Detail: err.Error()}
	}
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	doc, err := a.extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	quote, err := a.quotes.FetchQuote(ctx, ticker)
	if err != nil {
		if datasource.IsNotFound(err) {
			return nil, err
		}
		log.Printf("analyzer: quote for %s unavailable: %v", ticker, err)
		quote = nil
	}

	p := prompt.ForDocumentWithStock(doc.Text, ticker, quote)
	raw, err := a.gen.Generate(ctx, p, &llm.GenerateOptions{MaxTokens: prompt.DocumentMaxTokens})
	if err != nil {
		return nil, fmt.Errorf("analyze document %s for %s: %w", filename, ticker, err)
	}

	return &models.AnalysisResult{
		SubjectType: models.SubjectDocument,
		SubjectID:   filename,
		Summary:     CleanSummary(raw),
		Sentiment:   ExtractSentiment(raw),
		Quote:       quote,
		PageCount:   doc.PageCount,
	}, nil
}

// SummarizeText produces a short summary of free-form text.
func (a *Analyzer) SummarizeText(ctx context.Context, text string) (string, error) {
	if len(text) == 0 {
		return "", &ValidationError{Detail: "text must not be empty"}
	}
	raw, err := a.gen.Generate(ctx, prompt.ForSummarize(text), &llm.GenerateOptions{MaxTokens: prompt.SummarizeMaxTokens})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return CleanSummary(raw), nil
}

// ClassifySentiment labels free-form text with a single sentiment.
func (a *Analyzer) ClassifySentiment(ctx context.Context, text string) (models.Sentiment, error) {
	if len(text) == 0 {
		return "", &ValidationError{Detail: "text must not be empty"}
	}
	raw, err := a.gen.Generate(ctx, prompt.ForSentiment(text), &llm.GenerateOptions{MaxTokens: prompt.SentimentMaxTokens})
	if err != nil {
		return "", fmt.Errorf("classify sentiment: %w", err)
	}
	return ExtractSentiment(raw), nil
}

func validateDocument(data []byte) error {
	if len(data) == 0 {
		return &ValidationError{Detail: "uploaded file is empty"}
	}
	if len(data) > MaxDocumentBytes {
		return &ValidationError{Detail: fmt.Sprintf("file exceeds the %d MiB limit", MaxDocumentBytes>>20)}
	}
	return nil
}
