package models

// Sentiment is the fixed three-value classification derived from model
// output. Anything the model emits outside this vocabulary collapses to
// SentimentNeutral.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// Valid reports whether s is one of the three allowed values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// SubjectType identifies what an analysis was produced for.
type SubjectType string

const (
	SubjectTicker   SubjectType = "ticker"
	SubjectDocument SubjectType = "document"
)

// AnalysisResult is the single coherent result object assembled per
// request. A failed request never produces a partially filled result;
// callers either get a complete AnalysisResult or a typed error.
type AnalysisResult struct {
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   string      `json:"subject_id"` // ticker or filename
	Summary     string      `json:"summary"`
	Sentiment   Sentiment   `json:"sentiment"`
	Quote       *Quote      `json:"quote,omitempty"`
	News        []NewsItem  `json:"news,omitempty"`
	PageCount   int         `json:"page_count,omitempty"`
}
