// Package models defines the core data structures used throughout MarketBrief.
package models

import "time"

// Quote represents a point-in-time price snapshot for a ticker.
// CurrentPrice and ChangePct are pointers because a provider may
// legitimately have no data for them; nil is not an error.
type Quote struct {
	Ticker        string     `json:"ticker"`
	Name          string     `json:"name,omitempty"`
	CurrentPrice  *float64   `json:"current_price"`
	PreviousClose *float64   `json:"previous_close,omitempty"`
	ChangePct     *float64   `json:"change_percent"`
	Volume        int64      `json:"volume,omitempty"`
	AsOf          time.Time  `json:"as_of"`
}

// Price returns the current price with ok=false when the provider
// had no price data.
func (q *Quote) Price() (float64, bool) {
	if q == nil || q.CurrentPrice == nil {
		return 0, false
	}
	return *q.CurrentPrice, true
}

// Change returns the change percentage when present.
func (q *Quote) Change() (float64, bool) {
	if q == nil || q.ChangePct == nil {
		return 0, false
	}
	return *q.ChangePct, true
}

// Float is a convenience for building optional float fields.
func Float(v float64) *float64 { return &v }
