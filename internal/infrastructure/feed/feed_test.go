package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CryptoAggregator/internal/analysis"
	"CryptoAggregator/internal/config"
	"CryptoAggregator/internal/retry"
	"CryptoAggregator/internal/source"
)

func testRun() config.RunConfiguration {
	return config.RunConfiguration{
		MinWordCount:       10,
		MinParagraphCount:  1,
		MinQualityScore:    0.05,
		SocialQualityFloor: 0.3,
		WindowHours:        24,
		MaxItemsPerSource:  25,
		RetryAttempts:      1,
		RequestTimeout:     5 * time.Second,
	}
}

func testFactory(run config.RunConfiguration) *source.Factory {
	return source.NewFactory(run, analysis.NewAnalyzer(analysis.Keywords{}, nil))
}

func rssPayload(pubDate string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Test Feed</title>
  <item>
    <title>Bitcoin climbs past resistance as volume surges</title>
    <link>https://example.com/bitcoin-climbs</link>
    <pubDate>%s</pubDate>
    <content:encoded><![CDATA[
      <p>Bitcoin climbed past a key resistance level on Tuesday as trading volume surged across major exchanges.</p>
      <p>Analysts pointed to renewed institutional demand and falling exchange reserves as the main drivers.</p>
    ]]></content:encoded>
  </item>
  <item>
    <title>Ethereum upgrade ships on schedule</title>
    <link>https://example.com/ethereum-upgrade</link>
    <pubDate>%s</pubDate>
    <description><![CDATA[The long-awaited ethereum protocol upgrade shipped on schedule, cutting gas fees for common transactions across the network.]]></description>
  </item>
  <item>
    <title>Undated entry is dropped</title>
    <link>https://example.com/undated</link>
    <description><![CDATA[This entry has no publication date and must be skipped entirely by the parser.]]></description>
  </item>
</channel>
</rss>`, pubDate, pubDate)
}

func TestFetchParsesFeed(t *testing.T) {
	t.Parallel()

	pubDate := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC1123Z)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a browser user agent")
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssPayload(pubDate))
	}))
	defer srv.Close()

	run := testRun()
	src := NewSource("TestFeed", srv.URL, srv.Client(), testFactory(run), run, nil)

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	full := items[0]
	if full.Title != "Bitcoin climbs past resistance as volume surges" {
		t.Fatalf("unexpected title: %q", full.Title)
	}
	if full.Method != "feed" || full.SourceName != "TestFeed" {
		t.Fatalf("unexpected provenance: %s / %s", full.Method, full.SourceName)
	}
	if full.ParagraphCount != 2 {
		t.Fatalf("full-content extraction lost paragraphs: %d", full.ParagraphCount)
	}

	summary := items[1]
	if summary.URL != "https://example.com/ethereum-upgrade" {
		t.Fatalf("unexpected summary item url: %q", summary.URL)
	}
	if summary.ParagraphCount != 1 {
		t.Fatalf("summary fallback should yield one paragraph, got %d", summary.ParagraphCount)
	}
}

func atomPayload(published string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>r/CryptoCurrency hot</title>
  <entry>
    <title>Bitcoin dominance keeps climbing this quarter</title>
    <link href="https://www.reddit.com/r/CryptoCurrency/comments/abc123/bitcoin_dominance/"/>
    <published>%s</published>
    <content type="html">&lt;div class="md"&gt;&lt;p&gt;Bitcoin dominance has been climbing steadily this quarter while most altcoins bleed against btc, and exchange reserves keep falling according to on-chain data trackers.&lt;/p&gt;&lt;/div&gt; submitted by &lt;a href="https://www.reddit.com/user/poster"&gt;/u/poster&lt;/a&gt;</content>
  </entry>
  <entry>
    <title>Chart screenshot</title>
    <link href="https://www.reddit.com/r/CryptoCurrency/comments/def456/chart/"/>
    <published>%s</published>
    <content type="html">&lt;a href="https://preview.redd.it/abc.png"&gt;https://preview.redd.it/abc.png&lt;/a&gt; more context at preview.redd.it for this one</content>
  </entry>
  <entry>
    <title>Short post</title>
    <link href="https://www.reddit.com/r/CryptoCurrency/comments/ghi789/short/"/>
    <published>%s</published>
    <content type="html">&lt;p&gt;gm&lt;/p&gt;</content>
  </entry>
</feed>`, published, published, published)
}

func TestFetchParsesAtomFeed(t *testing.T) {
	t.Parallel()

	published := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomPayload(published))
	}))
	defer srv.Close()

	run := testRun()
	src := NewSource("Reddit_CryptoCurrency", srv.URL, srv.Client(), testFactory(run), run, nil)

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item (image-only and short posts dropped), got %d", len(items))
	}

	item := items[0]
	if item.Title != "Bitcoin dominance keeps climbing this quarter" {
		t.Fatalf("unexpected title: %q", item.Title)
	}
	if item.URL != "https://www.reddit.com/r/CryptoCurrency/comments/abc123/bitcoin_dominance/" {
		t.Fatalf("href link not decoded: %q", item.URL)
	}
	if !strings.Contains(item.Body, "dominance has been climbing") {
		t.Fatalf("entity-encoded content not extracted: %q", item.Body)
	}
	if strings.Contains(item.Body, "<") || strings.Contains(item.Body, "&lt;") {
		t.Fatalf("markup leaked into body: %q", item.Body)
	}
	if strings.Contains(strings.ToLower(item.Body), "submitted by") {
		t.Fatalf("footer metadata leaked into body: %q", item.Body)
	}
}

func TestFetchUnsupportedFormatIsStructural(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><opml version="2.0"><body/></opml>`)
	}))
	defer srv.Close()

	run := testRun()
	src := NewSource("Odd", srv.URL, srv.Client(), testFactory(run), run, nil)

	_, err := src.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !retry.IsStructural(err) {
		t.Fatalf("unsupported format must be structural, got %v", err)
	}
}

func TestFetchRespectsItemCap(t *testing.T) {
	t.Parallel()

	pubDate := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC1123Z)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssPayload(pubDate))
	}))
	defer srv.Close()

	run := testRun()
	run.MaxItemsPerSource = 1
	src := NewSource("TestFeed", srv.URL, srv.Client(), testFactory(run), run, nil)

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected cap of 1 item, got %d", len(items))
	}
}

func TestFetchClientErrorIsStructural(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	run := testRun()
	src := NewSource("Gone", srv.URL, srv.Client(), testFactory(run), run, nil)

	_, err := src.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !retry.IsStructural(err) {
		t.Fatalf("404 must be structural, got %v", err)
	}
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}))
	defer srv.Close()

	run := testRun()
	src := NewSource("Flaky", srv.URL, srv.Client(), testFactory(run), run, nil)

	_, err := src.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if retry.IsStructural(err) {
		t.Fatalf("500 must stay retryable, got %v", err)
	}
}

func TestFetchUnparsableFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a feed")
	}))
	defer srv.Close()

	run := testRun()
	src := NewSource("Broken", srv.URL, srv.Client(), testFactory(run), run, nil)

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
