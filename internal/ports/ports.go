package ports

import (
	"context"
	"time"

	"CryptoAggregator/internal/domain"
	"CryptoAggregator/internal/report"
)

// Source is the single contract every ingestion channel implements,
// regardless of transport. Fetch returns only items that already passed the
// admission gate; failures are the source's own, never another source's.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Item, error)
}

// Browser renders a page through an automated session and returns its HTML
// once anti-bot challenges have had a chance to resolve. The core treats the
// result as opaque text and does not depend on any automation engine.
type Browser interface {
	Render(ctx context.Context, url string) (string, error)
}

// SocialPost is one raw post as returned by the social-API collaborator.
type SocialPost struct {
	ID          string
	Text        string
	PublishedAt time.Time
	Reposts     int
	Replies     int
	Likes       int
	Quotes      int
}

// SocialClient is the authenticated social-API collaborator.
type SocialClient interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	RecentPosts(ctx context.Context, userID string, limit int) ([]SocialPost, error)
}

// RunArchive persists completed runs for audit and cross-run novelty
// statistics. A nil archive simply skips persistence.
type RunArchive interface {
	SeenURLs(ctx context.Context, urls []string) (map[string]bool, error)
	SaveRun(ctx context.Context, artifact report.Artifact) error
}

// Scheduler controls when aggregation passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
