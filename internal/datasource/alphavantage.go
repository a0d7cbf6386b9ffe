package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/marketbrief/marketbrief/pkg/models"
)

const alphaVantageName = "Alpha Vantage"

// AlphaVantage implements QuoteProvider using the Alpha Vantage
// GLOBAL_QUOTE endpoint. It is the quote fallback: stable, but the free
// tier allows only 5 requests per minute, so the rate limiter is strict.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	cache   *Cache
	limiter *RateLimiter
}

// AlphaVantageOption configures the Alpha Vantage provider.
type AlphaVantageOption func(*AlphaVantage)

// WithAlphaVantageBaseURL overrides the API base URL (used in tests).
func WithAlphaVantageBaseURL(url string) AlphaVantageOption {
	return func(a *AlphaVantage) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithAlphaVantageCacheTTL overrides how long quotes are cached.
func WithAlphaVantageCacheTTL(ttl time.Duration) AlphaVantageOption {
	return func(a *AlphaVantage) {
		if ttl > 0 {
			a.cache = NewCache(ttl)
		}
	}
}

// NewAlphaVantage creates an Alpha Vantage provider. An empty apiKey
// falls back to the provider's shared demo key, which only answers for
// a handful of symbols.
func NewAlphaVantage(apiKey string, opts ...AlphaVantageOption) *AlphaVantage {
	if apiKey == "" {
		apiKey = "demo"
	}
	a := &AlphaVantage{
		apiKey:  apiKey,
		baseURL: "https://www.alphavantage.co",
		cache:   NewCache(5 * time.Minute),
		limiter: NewRateLimiter(5, time.Minute), // free tier: 5 req/min
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider name.
func (a *AlphaVantage) Name() string { return alphaVantageName }

// avGlobalQuote mirrors the GLOBAL_QUOTE response. All values arrive as
// strings and need parsing.
type avGlobalQuote struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`
	// Populated instead of Global Quote when the free-tier quota is hit.
	Note        string `json:"Note"`
	Information string `json:"Information"`
	ErrorMsg    string `json:"Error Message"`
}

// FetchQuote returns a quote snapshot from GLOBAL_QUOTE.
func (a *AlphaVantage) FetchQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	cacheKey := "quote:" + ticker
	if cached, ok := a.cache.Get(cacheKey); ok {
		return cached.(*models.Quote), nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, NewProviderError(alphaVantageName, KindTransient, err)
	}

	url := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", a.baseURL, ticker, a.apiKey)
	body, _, err := doGet(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, classifyHTTPError(alphaVantageName, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewProviderError(alphaVantageName, KindTransient, fmt.Errorf("read response: %w", err))
	}

	var resp avGlobalQuote
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, NewProviderError(alphaVantageName, KindMalformed, fmt.Errorf("parse global quote: %w", err))
	}

	// Alpha Vantage reports quota exhaustion as 200 with a Note body.
	if resp.Note != "" || strings.Contains(resp.Information, "rate limit") {
		return nil, NewProviderError(alphaVantageName, KindRateLimited,
			fmt.Errorf("quota exceeded: %s%s", resp.Note, resp.Information))
	}
	if resp.ErrorMsg != "" {
		return nil, NewProviderError(alphaVantageName, KindMalformed, fmt.Errorf("%s", resp.ErrorMsg))
	}
	if resp.GlobalQuote.Symbol == "" {
		return nil, NewProviderError(alphaVantageName, KindNotFound, fmt.Errorf("no quote for %s", ticker))
	}

	quote := &models.Quote{
		Ticker: ticker,
		AsOf:   time.Now().UTC(),
	}
	if t, err := time.Parse("2006-01-02", resp.GlobalQuote.LatestTradingDay); err == nil {
		quote.AsOf = t.UTC()
	}
	if price, err := strconv.ParseFloat(resp.GlobalQuote.Price, 64); err == nil {
		quote.CurrentPrice = models.Float(round2(price))
	}
	if prev, err := strconv.ParseFloat(resp.GlobalQuote.PreviousClose, 64); err == nil {
		quote.PreviousClose = models.Float(round2(prev))
	}
	if pct, err := strconv.ParseFloat(strings.TrimSuffix(resp.GlobalQuote.ChangePercent, "%"), 64); err == nil {
		quote.ChangePct = models.Float(round2(pct))
	}
	if vol, err := strconv.ParseInt(resp.GlobalQuote.Volume, 10, 64); err == nil {
		quote.Volume = vol
	}

	a.cache.Set(cacheKey, quote)
	return quote, nil
}
