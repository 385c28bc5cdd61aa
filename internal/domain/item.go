package domain

import "time"

// Item is the normalized unit of content every pipeline stage operates on,
// whether it started life as a feed entry, a rendered article page, or a
// social post.
type Item struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	SourceName  string    `json:"source_name"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`

	// Method records the transport that produced the item; diagnostic only.
	Method string `json:"method"`

	WordCount      int     `json:"word_count"`
	ParagraphCount int     `json:"paragraph_count"`
	QualityScore   float64 `json:"quality_score"`
	ContentHash    string  `json:"content_hash"`

	Topics []string `json:"topics"`

	// Engagement is populated only for social-API items; nil for articles.
	Engagement map[string]int `json:"engagement,omitempty"`
}

// SourceResult captures the outcome of one Source invocation within a run.
// Failed sources carry an empty item list and an error message; they are
// reported, never dropped.
type SourceResult struct {
	SourceName    string        `json:"source_name"`
	Success       bool          `json:"success"`
	Items         []Item        `json:"-"`
	ExecutionTime time.Duration `json:"execution_time"`
	Method        string        `json:"method"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Attempts      int           `json:"attempts"`

	// ReliabilityScore is the ratio of actual to expected yield, capped at 1.
	ReliabilityScore float64 `json:"reliability_score"`
}
