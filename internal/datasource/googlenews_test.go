package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const googleRSSBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>"AAPL stock" - Google News</title>
    <item>
      <title>Apple shares climb after earnings - Reuters</title>
      <link>https://news.google.com/rss/articles/abc</link>
      <pubDate>Mon, 10 Mar 2025 16:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Why AAPL is moving today - The Motley Fool</title>
      <link>https://news.google.com/rss/articles/def</link>
      <pubDate>Mon, 10 Mar 2025 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Untagged headline</title>
      <link>https://news.google.com/rss/articles/ghi</link>
      <pubDate>Sun, 09 Mar 2025 08:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

// ════════════════════════════════════════════════════════════════════
// News fetching
// ════════════════════════════════════════════════════════════════════

func TestGoogleNewsFetchNews(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if got := r.URL.Query().Get("q"); got != "AAPL stock" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("ceid"); got != "US:en" {
			t.Errorf("ceid = %q", got)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, googleRSSBody)
	}))
	defer srv.Close()

	g := NewGoogleNews(WithGoogleNewsBaseURL(srv.URL))
	items, err := g.FetchNews(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchNews: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].Title != "Apple shares climb after earnings" {
		t.Errorf("first title = %q", items[0].Title)
	}
	if items[0].Source != "Reuters" {
		t.Errorf("first source = %q", items[0].Source)
	}
	if items[2].Source != "Google News" {
		t.Errorf("untagged source = %q", items[2].Source)
	}

	if _, err := g.FetchNews(context.Background(), "AAPL"); err != nil {
		t.Fatalf("cached FetchNews: %v", err)
	}
	if hits != 1 {
		t.Errorf("upstream hits = %d, want 1", hits)
	}
}

func TestGoogleNewsFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGoogleNews(WithGoogleNewsBaseURL(srv.URL))
	_, err := g.FetchNews(context.Background(), "AAPL")
	if kind, ok := ErrKind(err); !ok || kind != KindRateLimited {
		t.Errorf("kind = %q, want %q (err %v)", kind, KindRateLimited, err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Title splitting
// ════════════════════════════════════════════════════════════════════

func TestSplitGoogleTitle(t *testing.T) {
	tests := []struct {
		in        string
		headline  string
		publisher string
	}{
		{"Apple beats estimates - Reuters", "Apple beats estimates", "Reuters"},
		{"Stocks up - and more - Bloomberg", "Stocks up - and more", "Bloomberg"},
		{"No publisher here", "No publisher here", "Google News"},
		{"", "", "Google News"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, p := splitGoogleTitle(tt.in)
			if h != tt.headline || p != tt.publisher {
				t.Errorf("got %q / %q, want %q / %q", h, p, tt.headline, tt.publisher)
			}
		})
	}
}
