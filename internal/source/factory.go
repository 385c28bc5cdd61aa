// Package source holds the shared machinery every ingestion channel builds
// on: the item factory with its admission gate, and small transport helpers.
// Concrete sources differ only in how they obtain raw candidates; everything
// from normalization to quality gating is identical by construction.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"
	"time"

	"CryptoAggregator/internal/analysis"
	"CryptoAggregator/internal/config"
	"CryptoAggregator/internal/domain"
)

// Candidate carries the raw fields a source extracted for one piece of
// content, before normalization and admission checks.
type Candidate struct {
	Title       string
	Body        string
	URL         string
	SourceName  string
	Method      string
	PublishedAt time.Time
	Engagement  map[string]int
}

// Factory turns candidates into admitted Items. It enforces the configured
// minimum-word, minimum-paragraph, and minimum-quality thresholds and the
// trailing time window, so no source can return an item that skipped the
// gate.
type Factory struct {
	cfg      config.RunConfiguration
	analyzer *analysis.Analyzer
	now      func() time.Time
}

// NewFactory wires the analyzer into the admission pipeline.
func NewFactory(cfg config.RunConfiguration, analyzer *analysis.Analyzer) *Factory {
	return &Factory{cfg: cfg, analyzer: analyzer, now: time.Now}
}

// Window returns the trailing admission window [now-windowHours, now] in UTC.
func (f *Factory) Window() (time.Time, time.Time) {
	end := f.now().UTC()
	return end.Add(-time.Duration(f.cfg.WindowHours) * time.Hour), end
}

// Analyzer exposes the shared analyzer for sources that pre-filter raw
// candidates (relevance checks) before paying for full item construction.
func (f *Factory) Analyzer() *analysis.Analyzer {
	return f.analyzer
}

// Make validates and normalizes a candidate. The boolean is false when the
// candidate fails any admission check; rejection is silent filtering, not an
// error.
func (f *Factory) Make(c Candidate) (domain.Item, bool) {
	title := strings.TrimSpace(c.Title)
	body := strings.TrimSpace(c.Body)
	if title == "" || len(body) < 10 {
		return domain.Item{}, false
	}

	windowStart, windowEnd := f.Window()
	publishedAt := c.PublishedAt.UTC()
	if publishedAt.IsZero() {
		publishedAt = windowEnd
	}
	if publishedAt.Before(windowStart) || publishedAt.After(windowEnd) {
		return domain.Item{}, false
	}

	wordCount := len(strings.Fields(body))
	paragraphCount := countParagraphs(body)
	quality := f.analyzer.Score(body, title, c.Engagement)

	if wordCount < f.cfg.MinWordCount {
		return domain.Item{}, false
	}
	if paragraphCount < f.cfg.MinParagraphCount {
		return domain.Item{}, false
	}
	if quality < f.cfg.MinQualityScore {
		return domain.Item{}, false
	}
	if c.Engagement != nil && quality < f.cfg.SocialQualityFloor {
		return domain.Item{}, false
	}

	return domain.Item{
		Title:          title,
		Body:           body,
		URL:            c.URL,
		SourceName:     c.SourceName,
		PublishedAt:    publishedAt,
		FetchedAt:      windowEnd,
		Method:         c.Method,
		WordCount:      wordCount,
		ParagraphCount: paragraphCount,
		QualityScore:   quality,
		ContentHash:    ContentHash(body),
		Topics:         f.analyzer.ExtractTopics(body, title),
		Engagement:     c.Engagement,
	}, true
}

// ContentHash returns a stable hash of the body, independent of source and
// URL, for exact-duplicate detection.
func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:8])
}

func countParagraphs(body string) int {
	count := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// UserAgent returns a realistic browser user agent, varied per call.
func UserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Sleep pauses for a random duration in [min, max], or until ctx ends.
// Sources use it between per-item requests to keep request patterns polite.
func Sleep(ctx context.Context, min, max time.Duration) {
	if max < min {
		max = min
	}
	wait := min
	if max > min {
		wait += time.Duration(rand.Int63n(int64(max - min)))
	}
	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
