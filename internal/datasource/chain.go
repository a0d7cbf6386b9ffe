package datasource

import (
	"context"
	"fmt"
	"log"

	"github.com/marketbrief/marketbrief/pkg/models"
)

// The chains below try providers in registration order. RateLimited,
// Transient and Malformed errors advance to the next provider; NotFound
// is terminal because the ticker genuinely does not exist and a fallback
// lookup would only burn its quota re-confirming that.

// QuoteChain is an ordered list of quote providers with fallback.
type QuoteChain struct {
	providers []QuoteProvider
}

// NewQuoteChain creates a chain trying providers in the given order.
func NewQuoteChain(providers ...QuoteProvider) *QuoteChain {
	return &QuoteChain{providers: providers}
}

// Providers returns the registered providers in priority order.
func (c *QuoteChain) Providers() []QuoteProvider { return c.providers }

// FetchQuote tries each provider in order until one succeeds.
func (c *QuoteChain) FetchQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("quote chain: %w", ErrDataUnavailable)
	}

	var lastErr error
	for _, p := range c.providers {
		quote, err := p.FetchQuote(ctx, ticker)
		if err == nil {
			return quote, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if IsNotFound(err) {
			return nil, err
		}
		lastErr = err
		log.Printf("datasource: quote provider %s failed for %s: %v, trying next", p.Name(), ticker, err)
	}

	return nil, fmt.Errorf("quote for %s: %w: %v", ticker, ErrDataUnavailable, lastErr)
}

// NewsChain is an ordered list of news providers with fallback.
type NewsChain struct {
	providers []NewsProvider
}

// NewNewsChain creates a chain trying providers in the given order.
func NewNewsChain(providers ...NewsProvider) *NewsChain {
	return &NewsChain{providers: providers}
}

// Providers returns the registered providers in priority order.
func (c *NewsChain) Providers() []NewsProvider { return c.providers }

// FetchNews tries each provider in order until one succeeds. An empty
// result from a provider is a success, not a reason to fall back.
func (c *NewsChain) FetchNews(ctx context.Context, ticker string) ([]models.NewsItem, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("news chain: %w", ErrDataUnavailable)
	}

	var lastErr error
	for _, p := range c.providers {
		items, err := p.FetchNews(ctx, ticker)
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if IsNotFound(err) {
			return nil, err
		}
		lastErr = err
		log.Printf("datasource: news provider %s failed for %s: %v, trying next", p.Name(), ticker, err)
	}

	return nil, fmt.Errorf("news for %s: %w: %v", ticker, ErrDataUnavailable, lastErr)
}
