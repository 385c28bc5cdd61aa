package analysis

import (
	"strings"
	"testing"
	"time"

	"CryptoAggregator/internal/domain"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(Keywords{}, nil)
}

func TestScoreEmptyBody(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	if got := a.Score("", "Bitcoin surges", nil); got != 0 {
		t.Fatalf("expected 0 for empty body, got %f", got)
	}
	if got := a.Score("   \n  ", "Bitcoin surges", nil); got != 0 {
		t.Fatalf("expected 0 for whitespace body, got %f", got)
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()

	rich := strings.Repeat("bitcoin ethereum trading market analysis prediction consensus protocol ", 60)
	score := a.Score(rich, "Bitcoin and ethereum market analysis", map[string]int{
		MetricReposts: 1000, MetricReplies: 500, MetricLikes: 5000,
	})
	if score < 0 || score > 1 {
		t.Fatalf("score out of bounds: %f", score)
	}
	if score < 0.9 {
		t.Fatalf("expected saturated score for keyword-dense long content, got %f", score)
	}

	thin := a.Score("short note", "note", nil)
	if thin <= 0 || thin >= 0.3 {
		t.Fatalf("expected small positive score for thin content, got %f", thin)
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	body := "bitcoin price analysis shows the market trend continues with strong trading volume"
	first := a.Score(body, "Bitcoin analysis", nil)
	second := a.Score(body, "Bitcoin analysis", nil)
	if first != second {
		t.Fatalf("score not deterministic: %f vs %f", first, second)
	}
}

func TestScoreEngagementRaisesDepth(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	body := "the quick brown fox jumps over the lazy dog near the river bank every single morning"

	without := a.Score(body, "fox", nil)
	with := a.Score(body, "fox", map[string]int{MetricReposts: 50})
	if with <= without {
		t.Fatalf("engagement should raise the depth component: %f <= %f", with, without)
	}
}

func TestExtractTopicsTitleWeight(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	topics := a.ExtractTopics(
		"The bitcoin rally continued today as btc gained against other assets.",
		"Bitcoin rally continues",
	)
	if len(topics) == 0 {
		t.Fatal("expected at least one topic")
	}
	if topics[0] != "Bitcoin" {
		t.Fatalf("expected Bitcoin as the leading topic, got %v", topics)
	}
}

func TestExtractTopicsLimit(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	body := "bitcoin ethereum defi nft trading regulation market blockchain mining etf altcoin stablecoin"
	topics := a.ExtractTopics(body, "everything at once")
	if len(topics) > 5 {
		t.Fatalf("expected at most 5 topics, got %d: %v", len(topics), topics)
	}
}

func TestExtractTopicsNoMatch(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	if topics := a.ExtractTopics("the weather is pleasant", "sunny day"); len(topics) != 0 {
		t.Fatalf("expected no topics, got %v", topics)
	}
}

func TestIsRelevant(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()

	cases := []struct {
		text string
		want bool
	}{
		{"bitcoin breaks through resistance again", true},
		{"trading volume on the exchange spiked overnight", true},
		{"protocol upgrade scheduled for the blockchain next month", true},
		{"the weather is nice today", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := a.IsRelevant(tc.text); got != tc.want {
			t.Fatalf("IsRelevant(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestIsDuplicateSameURL(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	x := domain.Item{Title: "One story", URL: "https://example.com/a", ContentHash: "aaa"}
	y := domain.Item{Title: "Completely different words here", URL: "https://example.com/a", ContentHash: "bbb"}

	if !a.IsDuplicate(x, y, 0.8) || !a.IsDuplicate(y, x, 0.8) {
		t.Fatal("same URL must be a symmetric duplicate")
	}
}

func TestIsDuplicateSameHash(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	x := domain.Item{Title: "One story", URL: "https://example.com/a", ContentHash: "aaa"}
	y := domain.Item{Title: "Completely different words here", URL: "https://example.com/b", ContentHash: "aaa"}

	if !a.IsDuplicate(x, y, 0.8) || !a.IsDuplicate(y, x, 0.8) {
		t.Fatal("same content hash must be a symmetric duplicate")
	}
}

func TestIsDuplicateTitleSimilarity(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	// 7 of 8 shared tokens: Jaccard 7/8 = 0.875.
	x := domain.Item{Title: "Bitcoin ETF approval sends markets higher today", URL: "https://a.test/1", ContentHash: "h1"}
	y := domain.Item{Title: "Bitcoin ETF approval sends markets higher today again", URL: "https://b.test/2", ContentHash: "h2"}

	if !a.IsDuplicate(x, y, 0.8) {
		t.Fatal("expected duplicate at threshold 0.8")
	}
	if a.IsDuplicate(x, y, 0.9) {
		t.Fatal("expected non-duplicate at threshold 0.9")
	}
	if a.IsDuplicate(x, y, 0.8) != a.IsDuplicate(y, x, 0.8) {
		t.Fatal("title similarity check must be symmetric")
	}
}

func TestIsDuplicateSameSourceRepublish(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// 6 shared tokens out of a 9-token union: Jaccard 0.67, between the
	// republish floor (0.6) and the global threshold (0.8).
	x := domain.Item{
		Title: "Bitcoin ETF approval sends markets higher today",
		URL:   "https://a.test/1", ContentHash: "h1",
		SourceName: "CoinDesk", PublishedAt: base,
	}
	y := domain.Item{
		Title: "Bitcoin ETF approval sends markets higher this afternoon",
		URL:   "https://a.test/2", ContentHash: "h2",
		SourceName: "CoinDesk", PublishedAt: base.Add(2 * time.Minute),
	}

	if !a.IsDuplicate(x, y, 0.8) || !a.IsDuplicate(y, x, 0.8) {
		t.Fatal("near-simultaneous same-source republish must be a duplicate")
	}

	y.PublishedAt = base.Add(10 * time.Minute)
	if a.IsDuplicate(x, y, 0.8) {
		t.Fatal("republish outside the window must not be a duplicate")
	}

	y.PublishedAt = base.Add(2 * time.Minute)
	y.SourceName = "Decrypt"
	if a.IsDuplicate(x, y, 0.8) {
		t.Fatal("different sources must not trip the republish rule")
	}
}

func TestTitleSimilarityIgnoresPunctuationAndCase(t *testing.T) {
	t.Parallel()

	if got := titleSimilarity("Bitcoin Hits $100K!", "bitcoin hits 100k"); got != 1.0 {
		t.Fatalf("expected similarity 1.0, got %f", got)
	}
	if got := titleSimilarity("", "bitcoin"); got != 0 {
		t.Fatalf("expected 0 for empty title, got %f", got)
	}
}
