package social

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"CryptoAggregator/internal/analysis"
	"CryptoAggregator/internal/config"
	"CryptoAggregator/internal/domain"
	"CryptoAggregator/internal/ports"
	"CryptoAggregator/internal/source"
)

const fetchMethod = "social-api"

const maxTitleLength = 80

// Source polls the configured breaking-news accounts. One Source covers all
// accounts so the run report carries a single social entry; items keep the
// account in their source name for per-account deduplication.
type Source struct {
	opts    config.SocialConfig
	client  ports.SocialClient
	factory *source.Factory
	run     config.RunConfiguration
	logger  *slog.Logger
}

var _ ports.Source = (*Source)(nil)

func NewSource(opts config.SocialConfig, client ports.SocialClient, factory *source.Factory, run config.RunConfiguration, logger *slog.Logger) *Source {
	return &Source{
		opts:    opts,
		client:  client,
		factory: factory,
		run:     run,
		logger:  logger,
	}
}

// Name identifies the source in run reports.
func (s *Source) Name() string {
	return "social"
}

// Method reports the fetch method recorded on run results.
func (s *Source) Method() string {
	return fetchMethod
}

// Fetch walks the account list sequentially. A single failing account is
// logged and skipped; the source fails only when every account fails.
func (s *Source) Fetch(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	failed := 0

	for i, handle := range s.opts.Accounts {
		if i > 0 {
			delay := time.Duration(s.opts.AccountDelaySeconds * float64(time.Second))
			source.Sleep(ctx, delay, delay)
		}
		if ctx.Err() != nil {
			return items, ctx.Err()
		}

		accountItems, err := s.fetchAccount(ctx, handle)
		if err != nil {
			failed++
			s.debug("account skipped", "handle", handle, "error", err)
			continue
		}
		items = append(items, accountItems...)
	}

	if failed == len(s.opts.Accounts) {
		return nil, fmt.Errorf("social: all %d accounts failed", failed)
	}

	s.debug("accounts processed", "accounts", len(s.opts.Accounts), "failed", failed, "admitted", len(items))
	return items, nil
}

func (s *Source) fetchAccount(ctx context.Context, handle string) ([]domain.Item, error) {
	userID, err := s.client.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	posts, err := s.client.RecentPosts(ctx, userID, s.opts.MaxPostsPerAccount)
	if err != nil {
		return nil, err
	}

	analyzer := s.factory.Analyzer()
	items := make([]domain.Item, 0, len(posts))
	for _, post := range posts {
		text := strings.TrimSpace(post.Text)
		if text == "" || !analyzer.IsRelevant(text) {
			continue
		}

		item, admitted := s.factory.Make(source.Candidate{
			Title:       postTitle(text),
			Body:        text,
			URL:         fmt.Sprintf("https://x.com/%s/status/%s", handle, post.ID),
			SourceName:  "social/" + handle,
			Method:      fetchMethod,
			PublishedAt: post.PublishedAt,
			Engagement: map[string]int{
				analysis.MetricReposts: post.Reposts,
				analysis.MetricReplies: post.Replies,
				analysis.MetricLikes:   post.Likes,
				analysis.MetricQuotes:  post.Quotes,
			},
		})
		if admitted {
			items = append(items, item)
		}
	}
	return items, nil
}

// postTitle derives a display title from the post text: the first line,
// truncated on a word boundary.
func postTitle(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		text = text[:idx]
	}
	if len(text) <= maxTitleLength {
		return text
	}
	truncated := text[:maxTitleLength]
	if idx := strings.LastIndexByte(truncated, ' '); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}

func (s *Source) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
