package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/marketbrief/marketbrief/pkg/models"
)

const googleNewsName = "Google News"

// GoogleNews implements NewsProvider by scraping the Google News RSS
// search feed. It is the news fallback: always answers, but headlines
// are keyword matches rather than curated per-ticker coverage.
type GoogleNews struct {
	baseURL string
	cache   *Cache
	limiter *RateLimiter
	parser  *gofeed.Parser
}

// GoogleNewsOption configures the Google News provider.
type GoogleNewsOption func(*GoogleNews)

// WithGoogleNewsBaseURL overrides the RSS base URL (used in tests).
func WithGoogleNewsBaseURL(u string) GoogleNewsOption {
	return func(g *GoogleNews) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithGoogleNewsCacheTTL overrides how long headlines are cached.
func WithGoogleNewsCacheTTL(ttl time.Duration) GoogleNewsOption {
	return func(g *GoogleNews) {
		if ttl > 0 {
			g.cache = NewCache(ttl)
		}
	}
}

// NewGoogleNews creates a Google News RSS provider.
func NewGoogleNews(opts ...GoogleNewsOption) *GoogleNews {
	g := &GoogleNews{
		baseURL: "https://news.google.com/rss/search",
		cache:   NewCache(10 * time.Minute),
		limiter: NewRateLimiter(2, time.Second), // conservative: 2 req/s
		parser:  gofeed.NewParser(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the provider name.
func (g *GoogleNews) Name() string { return googleNewsName }

// FetchNews searches Google News for "<ticker> stock" headlines.
func (g *GoogleNews) FetchNews(ctx context.Context, ticker string) ([]models.NewsItem, error) {
	cacheKey := "news:" + ticker
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.([]models.NewsItem), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, NewProviderError(googleNewsName, KindTransient, err)
	}

	q := url.QueryEscape(ticker + " stock")
	feedURL := fmt.Sprintf("%s?q=%s&hl=en-US&gl=US&ceid=US:en", g.baseURL, q)
	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, classifyFeedError(googleNewsName, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		title, publisher := splitGoogleTitle(item.Title)
		n := models.NewsItem{
			Title:  title,
			Link:   item.Link,
			Source: publisher,
		}
		if item.PublishedParsed != nil {
			n.PublishedAt = *item.PublishedParsed
		}
		items = append(items, n)
	}

	items = models.DedupeNews(items)
	models.SortNewsByDate(items)

	g.cache.Set(cacheKey, items)
	return items, nil
}

// splitGoogleTitle separates "Headline - Publisher" titles. When no
// separator is present the publisher defaults to Google News.
func splitGoogleTitle(title string) (headline, publisher string) {
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
	}
	return title, googleNewsName
}
