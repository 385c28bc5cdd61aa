// Package browser implements the browser-automation source for sites that
// block plain HTTP clients. Rendering is delegated to the ports.Browser
// collaborator; this package owns link discovery, challenge handling and
// content extraction.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"CryptoAggregator/internal/config"
	"CryptoAggregator/internal/domain"
	"CryptoAggregator/internal/ports"
	"CryptoAggregator/internal/retry"
	"CryptoAggregator/internal/source"
)

const fetchMethod = "browser"

const challengePollInterval = time.Second

// challengeMarkers identify an interstitial page that has not finished
// resolving yet. Matching is case-insensitive.
var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"verify you are human",
	"cf-challenge",
	"attention required",
}

// promoMarkers flag boilerplate paragraphs that never belong to the article.
var promoMarkers = []string{
	"subscribe",
	"newsletter",
	"disclaimer",
	"advertisement",
	"sponsored",
	"follow us",
	"sign up",
	"cookie",
}

// skipPathSegments are index-page link classes that never lead to articles.
var skipPathSegments = []string{
	"/tag/", "/tags/", "/category/", "/author/", "/page/",
	"/about", "/contact", "/privacy", "/terms", "/advertise",
}

// Source scrapes one browser-rendered site: it mines the index page for
// article links, renders each one and extracts the body through the
// configured selector chain.
type Source struct {
	target  config.BrowserTarget
	opts    config.BrowserConfig
	browser ports.Browser
	factory *source.Factory
	run     config.RunConfiguration
	logger  *slog.Logger
}

var _ ports.Source = (*Source)(nil)

func NewSource(target config.BrowserTarget, opts config.BrowserConfig, browser ports.Browser, factory *source.Factory, run config.RunConfiguration, logger *slog.Logger) *Source {
	return &Source{
		target:  target,
		opts:    opts,
		browser: browser,
		factory: factory,
		run:     run,
		logger:  logger,
	}
}

// Name identifies the source in run reports.
func (s *Source) Name() string {
	return s.target.Name
}

// Method reports the fetch method recorded on run results.
func (s *Source) Method() string {
	return fetchMethod
}

// Fetch renders the index page, discovers article links and extracts each
// article. Individual article failures are logged and skipped; only an
// unusable index page fails the whole source.
func (s *Source) Fetch(ctx context.Context) ([]domain.Item, error) {
	indexHTML, err := s.render(ctx, s.target.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("browser %s: index page: %w", s.target.Name, err)
	}

	links, err := s.discoverLinks(indexHTML)
	if err != nil {
		return nil, fmt.Errorf("browser %s: %w", s.target.Name, err)
	}
	if len(links) == 0 {
		return nil, retry.Structural(fmt.Errorf("browser %s: no article links on index page", s.target.Name))
	}

	limit := s.opts.MaxArticles
	if limit <= 0 || limit > s.run.MaxItemsPerSource {
		limit = s.run.MaxItemsPerSource
	}
	if len(links) > limit {
		links = links[:limit]
	}

	items := make([]domain.Item, 0, len(links))
	for i, link := range links {
		if i > 0 {
			source.Sleep(ctx, s.run.RateLimitMin, s.run.RateLimitMax)
		}
		if ctx.Err() != nil {
			break
		}

		item, ok, err := s.fetchArticle(ctx, link)
		if err != nil {
			s.debug("article skipped", "url", link, "error", err)
			continue
		}
		if ok {
			items = append(items, item)
		}
	}

	s.debug("target processed", "links", len(links), "admitted", len(items))
	return items, nil
}

func (s *Source) fetchArticle(ctx context.Context, articleURL string) (domain.Item, bool, error) {
	html, err := s.render(ctx, articleURL)
	if err != nil {
		return domain.Item{}, false, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.Item{}, false, fmt.Errorf("parse article: %w", err)
	}

	body := s.extractBody(doc)
	if body == "" {
		body = s.readabilityFallback(html, articleURL)
	}
	if body == "" {
		return domain.Item{}, false, fmt.Errorf("no selector produced enough paragraphs")
	}

	item, admitted := s.factory.Make(source.Candidate{
		Title:       articleTitle(doc),
		Body:        body,
		URL:         articleURL,
		SourceName:  s.target.Name,
		Method:      fetchMethod,
		PublishedAt: publishedTime(doc),
	})
	return item, admitted, nil
}

// render asks the collaborator for the page, waits out anti-bot challenges
// and rejects pages too small to be real content.
func (s *Source) render(ctx context.Context, pageURL string) (string, error) {
	html, err := s.browser.Render(ctx, pageURL)
	if err != nil {
		return "", err
	}

	if isChallenge(html) {
		html, err = s.awaitChallenge(ctx, pageURL)
		if err != nil {
			return "", err
		}
	}

	if len(html) < s.opts.MinRenderedPageSizeBytes {
		return "", retry.Structural(fmt.Errorf("rendered page too small (%d bytes), likely blocked", len(html)))
	}
	return html, nil
}

// awaitChallenge re-renders the page once per second until the challenge
// clears or the budget runs out. A challenge that never resolves is a
// structural rejection.
func (s *Source) awaitChallenge(ctx context.Context, pageURL string) (string, error) {
	deadline := time.Now().Add(time.Duration(s.opts.ChallengeTimeoutSeconds) * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-time.After(challengePollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		html, err := s.browser.Render(ctx, pageURL)
		if err != nil {
			continue
		}
		if !isChallenge(html) {
			return html, nil
		}
	}
	return "", retry.Structural(fmt.Errorf("challenge on %s did not resolve within %ds", pageURL, s.opts.ChallengeTimeoutSeconds))
}

func isChallenge(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// discoverLinks mines the index page for same-host article links, preserving
// page order.
func (s *Source) discoverLinks(indexHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(indexHTML))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	base, err := url.Parse(s.target.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved := resolveArticleLink(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links, nil
}

func resolveArticleLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawQuery = ""

	if abs.Host != base.Host {
		return ""
	}
	path := strings.ToLower(abs.Path)
	if len(path) < 12 || abs.String() == base.String() {
		return ""
	}
	for _, skip := range skipPathSegments {
		if strings.Contains(path, skip) {
			return ""
		}
	}
	return abs.String()
}

// extractBody walks the selector chain and returns the first extraction with
// enough real paragraphs.
func (s *Source) extractBody(doc *goquery.Document) string {
	for _, selector := range s.opts.Selectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}

		var paragraphs []string
		container.Find("p").Each(func(_ int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if text != "" && !isPromo(text) {
				paragraphs = append(paragraphs, text)
			}
		})

		if len(paragraphs) >= s.opts.MinParagraphsPerArticle {
			return strings.Join(paragraphs, "\n")
		}
	}
	return ""
}

// readabilityFallback is the emergency extractor when every selector fails.
func (s *Source) readabilityFallback(html, articleURL string) string {
	parsed, err := url.Parse(articleURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if len(strings.Fields(text)) < s.run.MinWordCount {
		return ""
	}
	return text
}

func isPromo(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range promoMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func articleTitle(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func publishedTime(doc *goquery.Document) time.Time {
	content, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content")
	if !ok {
		content, _ = doc.Find(`meta[name="article:published_time"]`).First().Attr("content")
	}
	if content != "" {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(content)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (s *Source) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

// HTTPRenderer is the default ports.Browser collaborator: a plain HTTP
// client with browser-like headers. Sites that require real JavaScript
// execution need a headless-browser implementation swapped in behind the
// same port.
type HTTPRenderer struct {
	client *http.Client
}

var _ ports.Browser = (*HTTPRenderer)(nil)

func NewHTTPRenderer(timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{client: &http.Client{Timeout: timeout}}
}

// Render fetches the page and returns its HTML.
func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", retry.Structural(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", source.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		return "", retry.Structural(fmt.Errorf("render %s: %s", pageURL, resp.Status))
	default:
		return "", fmt.Errorf("render %s: %s", pageURL, resp.Status)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Body); err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return sb.String(), nil
}
