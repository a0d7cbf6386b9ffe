package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/marketbrief/marketbrief/pkg/models"
)

const yahooName = "Yahoo Finance"

// Yahoo implements QuoteProvider and NewsProvider using the public
// Yahoo Finance chart API and headline RSS feed. It is the primary
// provider: no API key, generous limits, occasionally flaky.
type Yahoo struct {
	chartURL string
	rssURL   string
	cache    *Cache
	limiter  *RateLimiter
	parser   *gofeed.Parser
}

// YahooOption configures the Yahoo provider.
type YahooOption func(*Yahoo)

// WithYahooChartURL overrides the chart API base URL (used in tests).
func WithYahooChartURL(url string) YahooOption {
	return func(y *Yahoo) { y.chartURL = strings.TrimRight(url, "/") }
}

// WithYahooRSSURL overrides the headline RSS base URL (used in tests).
func WithYahooRSSURL(url string) YahooOption {
	return func(y *Yahoo) { y.rssURL = strings.TrimRight(url, "/") }
}

// WithYahooCacheTTL overrides how long quotes and headlines are cached.
func WithYahooCacheTTL(ttl time.Duration) YahooOption {
	return func(y *Yahoo) {
		if ttl > 0 {
			y.cache = NewCache(ttl)
		}
	}
}

// NewYahoo creates a new Yahoo Finance provider.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		chartURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		rssURL:   "https://feeds.finance.yahoo.com/rss/2.0/headline",
		cache:    NewCache(5 * time.Minute),
		limiter:  NewRateLimiter(5, time.Second), // 5 req/s
		parser:   gofeed.NewParser(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the provider name.
func (y *Yahoo) Name() string { return yahooName }

// --- Yahoo Finance v8 chart API types ---

type yhChartResponse struct {
	Chart struct {
		Result []yhChartResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"chart"`
}

type yhChartResult struct {
	Meta yhChartMeta `json:"meta"`
}

type yhChartMeta struct {
	Symbol              string  `json:"symbol"`
	ShortName           string  `json:"shortName"`
	LongName            string  `json:"longName"`
	Currency            string  `json:"currency"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	ChartPreviousClose  float64 `json:"chartPreviousClose"`
	PreviousClose       float64 `json:"previousClose"`
	RegularMarketVolume int64   `json:"regularMarketVolume"`
	RegularMarketTime   int64   `json:"regularMarketTime"`
}

type yhError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchQuote returns a quote snapshot from the chart endpoint.
// Two days of daily candles are requested so the previous close is
// always present for the change computation.
func (y *Yahoo) FetchQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	cacheKey := "quote:" + ticker
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*models.Quote), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, NewProviderError(yahooName, KindTransient, err)
	}

	url := fmt.Sprintf("%s/%s?range=2d&interval=1d", y.chartURL, ticker)
	body, _, err := doGet(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, classifyHTTPError(yahooName, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewProviderError(yahooName, KindTransient, fmt.Errorf("read response: %w", err))
	}

	var resp yhChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, NewProviderError(yahooName, KindMalformed, fmt.Errorf("parse chart response: %w", err))
	}

	if resp.Chart.Error != nil {
		kind := KindTransient
		if strings.EqualFold(resp.Chart.Error.Code, "Not Found") {
			kind = KindNotFound
		}
		return nil, NewProviderError(yahooName, kind,
			fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, NewProviderError(yahooName, KindNotFound, fmt.Errorf("no chart data for %s", ticker))
	}

	meta := resp.Chart.Result[0].Meta
	quote := &models.Quote{
		Ticker: ticker,
		Name:   coalesce(meta.LongName, meta.ShortName, ticker),
		Volume: meta.RegularMarketVolume,
		AsOf:   time.Now().UTC(),
	}
	if meta.RegularMarketTime > 0 {
		quote.AsOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	if meta.RegularMarketPrice > 0 {
		quote.CurrentPrice = models.Float(round2(meta.RegularMarketPrice))
	}
	prevClose := meta.ChartPreviousClose
	if prevClose == 0 {
		prevClose = meta.PreviousClose
	}
	if prevClose > 0 {
		quote.PreviousClose = models.Float(round2(prevClose))
		if meta.RegularMarketPrice > 0 {
			pct := (meta.RegularMarketPrice - prevClose) / prevClose * 100
			quote.ChangePct = models.Float(round2(pct))
		}
	}

	y.cache.Set(cacheKey, quote)
	return quote, nil
}

// FetchNews returns recent headlines from the per-ticker RSS feed.
// Unknown tickers yield an empty feed rather than an HTTP error, which
// surfaces here as an empty, valid result.
func (y *Yahoo) FetchNews(ctx context.Context, ticker string) ([]models.NewsItem, error) {
	cacheKey := "news:" + ticker
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.([]models.NewsItem), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, NewProviderError(yahooName, KindTransient, err)
	}

	url := fmt.Sprintf("%s?s=%s&region=US&lang=en-US", y.rssURL, ticker)
	feed, err := y.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, classifyFeedError(yahooName, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		n := models.NewsItem{
			Title:   item.Title,
			Link:    item.Link,
			Source:  yahooName,
			Summary: truncateSummary(cleanHTML(item.Description)),
		}
		if item.PublishedParsed != nil {
			n.PublishedAt = *item.PublishedParsed
		}
		items = append(items, n)
	}

	items = models.DedupeNews(items)
	models.SortNewsByDate(items)

	y.cache.Set(cacheKey, items)
	return items, nil
}

// classifyFeedError maps gofeed errors onto the provider taxonomy.
func classifyFeedError(provider string, err error) *ProviderError {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case 429:
			return NewProviderError(provider, KindRateLimited, err)
		case 404:
			return NewProviderError(provider, KindNotFound, err)
		default:
			return NewProviderError(provider, KindTransient, err)
		}
	}
	if strings.Contains(err.Error(), "Failed to detect feed type") {
		return NewProviderError(provider, KindMalformed, err)
	}
	return NewProviderError(provider, KindTransient, err)
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// truncateSummary caps a headline summary for prompt and response use.
func truncateSummary(s string) string {
	const maxSummary = 200
	if len(s) <= maxSummary {
		return s
	}
	return s[:maxSummary] + "..."
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// round2 rounds to two decimal places for price display.
func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
