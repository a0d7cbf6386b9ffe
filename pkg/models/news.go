package models

import (
	"sort"
	"time"
)

// NewsItem represents a single news headline for a ticker.
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// DedupeNews removes items with duplicate titles, keeping first occurrence.
func DedupeNews(items []NewsItem) []NewsItem {
	seen := make(map[string]bool, len(items))
	out := make([]NewsItem, 0, len(items))
	for _, item := range items {
		if seen[item.Title] {
			continue
		}
		seen[item.Title] = true
		out = append(out, item)
	}
	return out
}

// SortNewsByDate sorts items newest first.
func SortNewsByDate(items []NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
