package analysis

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"CryptoAggregator/internal/domain"
)

// Engagement metric keys attached to social items.
const (
	MetricReposts = "reposts"
	MetricReplies = "replies"
	MetricLikes   = "likes"
	MetricQuotes  = "quotes"
)

const sameSourceRepublishWindow = 5 * time.Minute

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Analyzer provides pure content analysis: quality scoring, topic
// extraction, relevance filtering, and pairwise duplicate detection. It is
// stateless after construction and safe for concurrent use.
type Analyzer struct {
	keywords Keywords
	taxonomy []Topic
}

// NewAnalyzer builds an analyzer; empty keyword tiers and an empty taxonomy
// fall back to the built-in defaults.
func NewAnalyzer(kw Keywords, taxonomy []Topic) *Analyzer {
	defaults := DefaultKeywords()
	kw.HighValue = orDefault(kw.HighValue, defaults.HighValue)
	kw.MediumValue = orDefault(kw.MediumValue, defaults.MediumValue)
	kw.LowValue = orDefault(kw.LowValue, defaults.LowValue)
	kw.Technical = orDefault(kw.Technical, defaults.Technical)
	kw.Analytical = orDefault(kw.Analytical, defaults.Analytical)
	kw.Anchors = orDefault(kw.Anchors, defaults.Anchors)

	if len(taxonomy) == 0 {
		taxonomy = DefaultTaxonomy()
	}

	return &Analyzer{keywords: kw, taxonomy: taxonomy}
}

// Score computes the quality score for a piece of content as a weighted sum
// of four independently capped components: length (0.3), domain relevance
// (0.4), structure (0.2), and depth or engagement (0.1). The result is
// always within [0, 1] and is a pure function of its inputs.
func (a *Analyzer) Score(body, title string, engagement map[string]int) float64 {
	if strings.TrimSpace(body) == "" {
		return 0.0
	}

	combined := strings.ToLower(title + " " + body)
	wordCount := len(strings.Fields(combined))

	lengthScore := minFloat(float64(wordCount)/300.0, 1.0) * 0.3

	relevance := 0.0
	relevance += minFloat(float64(countMatches(combined, a.keywords.HighValue))/2.0, 1.0) * 0.15
	relevance += minFloat(float64(countMatches(combined, a.keywords.MediumValue))/3.0, 1.0) * 0.12
	relevance += minFloat(float64(countMatches(combined, a.keywords.LowValue))/4.0, 1.0) * 0.08
	relevance += minFloat(float64(countMatches(combined, a.keywords.Technical))/2.0, 1.0) * 0.05

	structure := 0.1
	if wordCount > 100 {
		structure += 0.05
	}
	if wordCount > 200 {
		structure += 0.05
	}

	depth := 0.0
	if engagement != nil {
		raw := float64(engagement[MetricReposts]*3+engagement[MetricReplies]*2+engagement[MetricLikes]) / 100.0
		depth = minFloat(raw, 1.0) * 0.1
	} else {
		markers := countMatches(combined, a.keywords.Analytical)
		depth = minFloat(float64(markers)/3.0, 1.0) * 0.1
	}

	return minFloat(lengthScore+relevance+structure+depth, 1.0)
}

// ExtractTopics returns up to five taxonomy topics ordered by match score,
// with title hits weighted double. Ties keep taxonomy declaration order.
func (a *Analyzer) ExtractTopics(body, title string) []string {
	combined := strings.ToLower(title + " " + body)
	titleLower := strings.ToLower(title)

	type scored struct {
		name  string
		score int
		order int
	}

	var matches []scored
	for i, topic := range a.taxonomy {
		score := 0
		for _, kw := range topic.Keywords {
			if !strings.Contains(combined, kw) {
				continue
			}
			if strings.Contains(titleLower, kw) {
				score += 2
			} else {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{name: topic.Name, score: score, order: i})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].order < matches[j].order
	})

	limit := 5
	if len(matches) < limit {
		limit = len(matches)
	}

	topics := make([]string, 0, limit)
	for _, m := range matches[:limit] {
		topics = append(topics, m.name)
	}
	return topics
}

// IsRelevant reports whether free-form text is on-domain. Used by sources
// without inherent topical guarantees (social search) to pre-filter before
// admission scoring: one high-value hit, two medium-value hits, or one
// technical hit alongside an anchor term all qualify.
func (a *Analyzer) IsRelevant(text string) bool {
	lower := strings.ToLower(text)

	for _, kw := range a.keywords.HighValue {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	if countDistinct(lower, a.keywords.MediumValue) >= 2 {
		return true
	}

	if countDistinct(lower, a.keywords.Technical) >= 1 {
		for _, anchor := range a.keywords.Anchors {
			if strings.Contains(lower, anchor) {
				return true
			}
		}
	}

	return false
}

// IsDuplicate reports whether two items describe the same piece of content.
// The check is symmetric: identical URL, identical content hash, title-token
// Jaccard similarity above the threshold, or a near-simultaneous republish
// from the same source with moderately similar titles.
func (a *Analyzer) IsDuplicate(x, y domain.Item, threshold float64) bool {
	if x.URL != "" && x.URL == y.URL {
		return true
	}

	if x.ContentHash != "" && x.ContentHash == y.ContentHash {
		return true
	}

	similarity := titleSimilarity(x.Title, y.Title)
	if similarity > threshold {
		return true
	}

	if x.SourceName == y.SourceName && similarity > 0.6 {
		delta := x.PublishedAt.Sub(y.PublishedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta < sameSourceRepublishWindow {
			return true
		}
	}

	return false
}

func titleSimilarity(a, b string) float64 {
	ta := titleTokens(a)
	tb := titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range ta {
		if _, ok := tb[token]; ok {
			intersection++
		}
	}

	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func titleTokens(title string) map[string]struct{} {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(title), "")
	tokens := map[string]struct{}{}
	for _, word := range strings.Fields(cleaned) {
		tokens[word] = struct{}{}
	}
	return tokens
}

// countMatches counts total keyword occurrences; multi-word keywords match
// as substrings, single words as whitespace-delimited tokens.
func countMatches(text string, keywords []string) int {
	words := strings.Fields(text)
	total := 0
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			total += strings.Count(text, kw)
			continue
		}
		for _, word := range words {
			if strings.Trim(word, ".,!?:;\"'()") == kw {
				total++
			}
		}
	}
	return total
}

func countDistinct(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
