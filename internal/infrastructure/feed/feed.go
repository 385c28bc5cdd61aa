// Package feed implements the feed-based source: plain HTTP plus RSS 2.0
// and Atom parsing. It is the cheapest and most reliable transport and is
// preferred wherever a target publishes a usable feed.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CryptoAggregator/internal/config"
	"CryptoAggregator/internal/domain"
	"CryptoAggregator/internal/ports"
	"CryptoAggregator/internal/retry"
	"CryptoAggregator/internal/source"
)

const fetchMethod = "feed"

// Minimum word counts distinguishing a usable full-content body from one
// that needs the summary fallback.
const (
	minFullContentWords = 20
	minSummaryWords     = 10
)

type rssDocument struct {
	Channel struct {
		Items []rssEntry `xml:"item"`
	} `xml:"channel"`
}

type rssEntry struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Encoded     string `xml:"encoded"` // content:encoded, full article HTML
	Description string `xml:"description"`
}

// Atom is the second wire format this source speaks: community feeds
// (Reddit's subreddit .rss endpoints among them) serve <feed><entry>
// documents with href-attribute links and entity-encoded HTML content.
type atomDocument struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Content   string     `xml:"content"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(e.Links) > 0 {
		return strings.TrimSpace(e.Links[0].Href)
	}
	return ""
}

// feedEntry is the format-independent view both parsers normalize into.
// text, when set, is an already-extracted plain-text body (Atom path);
// content and summary are raw HTML still to be extracted (RSS path).
type feedEntry struct {
	title     string
	link      string
	published string
	content   string
	summary   string
	text      string
}

// Source fetches one RSS feed and normalizes its entries into items.
type Source struct {
	name    string
	feedURL string
	client  *http.Client
	factory *source.Factory
	run     config.RunConfiguration
	logger  *slog.Logger
}

var _ ports.Source = (*Source)(nil)

// NewSource wires an HTTP client; a nil client gets a default with the
// configured request timeout.
func NewSource(name, feedURL string, client *http.Client, factory *source.Factory, run config.RunConfiguration, logger *slog.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: run.RequestTimeout}
	}
	return &Source{
		name:    name,
		feedURL: feedURL,
		client:  client,
		factory: factory,
		run:     run,
		logger:  logger,
	}
}

// Name identifies the source in run reports.
func (s *Source) Name() string {
	return s.name
}

// Method reports the fetch method recorded on run results.
func (s *Source) Method() string {
	return fetchMethod
}

// Fetch downloads and parses the feed, applies the time window, and returns
// the entries that pass the admission gate.
func (s *Source) Fetch(ctx context.Context) ([]domain.Item, error) {
	payload, err := s.download(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", s.name, err)
	}

	entries, err := parseEntries(payload)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", s.name, err)
	}

	if len(entries) == 0 {
		s.debug("feed has no entries", "url", s.feedURL)
		return nil, nil
	}
	if len(entries) > s.run.MaxItemsPerSource {
		entries = entries[:s.run.MaxItemsPerSource]
	}

	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		publishedAt, ok := parsePubDate(entry.published)
		if !ok {
			continue
		}

		body := extractBody(entry)
		if body == "" {
			continue
		}

		item, admitted := s.factory.Make(source.Candidate{
			Title:       entry.title,
			Body:        body,
			URL:         entry.link,
			SourceName:  s.name,
			Method:      fetchMethod,
			PublishedAt: publishedAt,
		})
		if admitted {
			items = append(items, item)
		}
	}

	s.debug("feed processed", "entries", len(entries), "admitted", len(items))
	return items, nil
}

func (s *Source) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, retry.Structural(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", source.UserAgent())
	req.Header.Set("Accept", "application/xml, application/rss+xml, text/xml, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Accept-Encoding deliberately unset so the transport negotiates and
	// decompresses gzip feeds itself.

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	default:
		return nil, retry.Structural(fmt.Errorf("feed returned %s", resp.Status))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return payload, nil
}

// parseEntries decodes the payload as RSS 2.0 or Atom depending on the root
// element. Any other root is a structural rejection: re-fetching a feed in a
// format this source does not speak cannot help.
func parseEntries(payload []byte) ([]feedEntry, error) {
	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(payload, &root); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	switch root.XMLName.Local {
	case "rss":
		var doc rssDocument
		if err := xml.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("parse rss: %w", err)
		}
		entries := make([]feedEntry, 0, len(doc.Channel.Items))
		for _, item := range doc.Channel.Items {
			entries = append(entries, feedEntry{
				title:     item.Title,
				link:      strings.TrimSpace(item.Link),
				published: item.PubDate,
				content:   item.Encoded,
				summary:   item.Description,
			})
		}
		return entries, nil

	case "feed":
		var doc atomDocument
		if err := xml.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("parse atom: %w", err)
		}
		entries := make([]feedEntry, 0, len(doc.Entries))
		for _, entry := range doc.Entries {
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			entries = append(entries, feedEntry{
				title:     entry.Title,
				link:      entry.link(),
				published: published,
				text:      communityPostText(entry.Content),
			})
		}
		return entries, nil

	default:
		return nil, retry.Structural(fmt.Errorf("unsupported feed root element %q", root.XMLName.Local))
	}
}

// extractBody prefers the embedded full article (content:encoded) and falls
// back to the summary when the full content is missing or too short.
// Pre-extracted Atom text only needs the summary-length floor.
func extractBody(entry feedEntry) string {
	if entry.text != "" {
		if len(strings.Fields(entry.text)) >= minSummaryWords {
			return entry.text
		}
		return ""
	}

	if entry.content != "" {
		body := paragraphsFromHTML(entry.content)
		if len(strings.Fields(body)) >= minFullContentWords {
			return body
		}
	}

	if entry.summary != "" {
		body := textFromHTML(entry.summary)
		if len(strings.Fields(body)) >= minSummaryWords {
			return body
		}
	}

	return ""
}

// communityPostText turns an Atom content block into a clean plain-text
// body. Reddit double-encodes its HTML, so the payload needs a second
// entity-unescape after XML decoding, and carries "submitted by" metadata
// links plus image-only posts that are noise rather than content.
func communityPostText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(raw)))
	if err != nil {
		return ""
	}

	// The footer is "submitted by /u/name [link] [comments]": drop the
	// metadata anchors, then cut the trailing marker out of the text.
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		label := strings.TrimSpace(strings.ToLower(a.Text()))
		if strings.HasPrefix(label, "/u/") || label == "[link]" || label == "[comments]" {
			a.Remove()
		}
	})

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if i := strings.LastIndex(strings.ToLower(text), "submitted by"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if len(text) <= 50 {
		return ""
	}
	if strings.Contains(text, "preview.redd.it") {
		return ""
	}
	return text
}

func paragraphsFromHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(paragraphs, "\n")
}

func textFromHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

func parsePubDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (s *Source) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
