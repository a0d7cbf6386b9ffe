// Package datasource provides market data fetching from multiple providers.
// It defines QuoteProvider and NewsProvider interfaces, concrete clients for
// Yahoo Finance (primary), Alpha Vantage (quote fallback) and Google News
// (news fallback), and ordered fallback chains with a per-error-kind policy.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/marketbrief/marketbrief/pkg/models"
)

// QuoteProvider fetches a price snapshot for a ticker.
type QuoteProvider interface {
	// Name returns the human-readable name of this provider.
	Name() string

	// FetchQuote returns a quote snapshot. A quote with nil price fields
	// is valid (the provider had no data); errors are *ProviderError.
	FetchQuote(ctx context.Context, ticker string) (*models.Quote, error)
}

// NewsProvider fetches recent headlines for a ticker.
type NewsProvider interface {
	// Name returns the human-readable name of this provider.
	Name() string

	// FetchNews returns headlines, newest first. An empty slice is valid.
	FetchNews(ctx context.Context, ticker string) ([]models.NewsItem, error)
}

// --- Provider error taxonomy ---

// ErrorKind classifies a provider failure and drives the fallback policy.
type ErrorKind string

const (
	// KindRateLimited: the provider throttled us. Try the next provider.
	KindRateLimited ErrorKind = "rate_limited"
	// KindNotFound: the ticker does not exist at this provider. Terminal;
	// the fallback would only re-confirm it.
	KindNotFound ErrorKind = "not_found"
	// KindTransient: network failure, 5xx, timeout. Try the next provider.
	KindTransient ErrorKind = "transient"
	// KindMalformed: the provider answered with an unparseable body.
	// Treated like transient for fallback purposes.
	KindMalformed ErrorKind = "malformed"
)

// ProviderError is the tagged error every provider returns on failure.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a ProviderError wrapping cause.
func NewProviderError(provider string, kind ErrorKind, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: cause}
}

// ErrDataUnavailable is returned by a chain when every provider failed.
var ErrDataUnavailable = errors.New("data unavailable from all providers")

// ErrKind extracts the ErrorKind from err, if it carries one.
func ErrKind(err error) (ErrorKind, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return "", false
}

// IsNotFound reports whether err is a ticker-not-found provider error.
func IsNotFound(err error) bool {
	kind, ok := ErrKind(err)
	return ok && kind == KindNotFound
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
// Yahoo endpoints reject the Go default agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPClient is a pre-configured HTTP client with reasonable timeouts.
var HTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// doGet performs a GET request with the given URL and headers, returning the
// response body. The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, application/xml, text/xml, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.StatusCode, nil
}

// classifyHTTPError maps a transport-level error from doGet onto the
// provider error taxonomy.
func classifyHTTPError(provider string, err error) *ProviderError {
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return NewProviderError(provider, KindRateLimited, err)
		case httpErr.StatusCode == http.StatusNotFound:
			return NewProviderError(provider, KindNotFound, err)
		default:
			return NewProviderError(provider, KindTransient, err)
		}
	}
	return NewProviderError(provider, KindTransient, err)
}

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush removes all entries from the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}

// --- Rate limiter ---

// RateLimiter provides simple token-bucket rate limiting.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter that allows maxTokens requests
// per refillRate duration.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			// Check again after a short sleep.
		}
	}
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		periods := int(elapsed / rl.refillRate)
		rl.tokens += periods
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}
