// Package usecase drives one aggregation pass: every configured source in
// sequence, then deduplication, ranking and report assembly.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"CryptoAggregator/internal/config"
	"CryptoAggregator/internal/domain"
	"CryptoAggregator/internal/ports"
	"CryptoAggregator/internal/report"
	"CryptoAggregator/internal/retry"
	"CryptoAggregator/internal/source"
)

// Expected per-source yields used for the reliability score. Social accounts
// post far more often than article sites publish.
const (
	socialYieldBaseline  = 20
	defaultYieldBaseline = 5
)

// Orchestrator runs the full aggregation pass. Sources execute strictly
// sequentially: the rate-limit pauses between them are part of the
// politeness contract, and a failing source never stops the run.
type Orchestrator struct {
	run     config.RunConfiguration
	factory *source.Factory
	sources []ports.Source
	archive ports.RunArchive // optional, nil disables cross-run dedup and persistence
	logger  *slog.Logger
}

func NewOrchestrator(run config.RunConfiguration, factory *source.Factory, sources []ports.Source, archive ports.RunArchive, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		run:     run,
		factory: factory,
		sources: sources,
		archive: archive,
		logger:  logger,
	}
}

// Execute performs one pass and returns the run artifact. The returned error
// is reserved for run-level failures; individual source failures are folded
// into the report instead.
func (o *Orchestrator) Execute(ctx context.Context) (report.Artifact, error) {
	started := time.Now()
	if o.run.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.run.RunTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	windowStart, windowEnd := o.factory.Window()
	o.logger.Info("run started", "run_id", runID, "sources", len(o.sources),
		"window_start", windowStart, "window_end", windowEnd)

	results := make([]domain.SourceResult, 0, len(o.sources))
	var collected []domain.Item
	for i, src := range o.sources {
		if i > 0 {
			source.Sleep(ctx, o.run.RateLimitMin, o.run.RateLimitMax)
		}

		result := o.runSource(ctx, src)
		collected = append(collected, result.Items...)
		results = append(results, result)

		if result.Success {
			o.logger.Info("source completed", "source", result.SourceName,
				"items", len(result.Items), "attempts", result.Attempts,
				"duration", result.ExecutionTime)
		} else {
			o.logger.Warn("source failed", "source", result.SourceName,
				"attempts", result.Attempts, "error", result.ErrorMessage)
		}
	}

	// Archive-filtered items are old news, not duplicates: count the corpus
	// baseline after the archive pass so duplicates_removed reflects only
	// within-run deduplication.
	collected = o.dropArchived(ctx, collected)
	rawCount := len(collected)
	corpus := o.deduplicate(collected)
	sortCorpus(corpus)

	rep := report.Build(runID, windowStart, windowEnd, results, rawCount, corpus, time.Since(started))
	artifact := report.Artifact{Metadata: rep, Items: corpus}

	if o.archive != nil {
		if err := o.archive.SaveRun(ctx, artifact); err != nil {
			o.logger.Error("archive save failed", "run_id", runID, "error", err)
		}
	}

	o.logger.Info("run completed", "run_id", runID,
		"items", len(corpus), "duplicates_removed", rawCount-len(corpus),
		"duration", time.Since(started))
	return artifact, nil
}

// runSource executes one source under its own timeout, retrying transient
// failures. Panics and structural rejections convert to a failed result.
func (o *Orchestrator) runSource(ctx context.Context, src ports.Source) domain.SourceResult {
	srcCtx := ctx
	if o.run.SourceTimeout > 0 {
		var cancel context.CancelFunc
		srcCtx, cancel = context.WithTimeout(ctx, o.run.SourceTimeout)
		defer cancel()
	}

	result := domain.SourceResult{SourceName: src.Name()}
	if m, ok := src.(interface{ Method() string }); ok {
		result.Method = m.Method()
	}

	fetchStart := time.Now()
	var items []domain.Item
	attempts, err := retry.Do(srcCtx, retry.Policy{MaxAttempts: o.run.RetryAttempts}, func() error {
		var fetchErr error
		items, fetchErr = fetchGuarded(srcCtx, src)
		return fetchErr
	})

	result.ExecutionTime = time.Since(fetchStart)
	result.Attempts = attempts
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	result.Success = true
	result.Items = items
	result.ReliabilityScore = reliability(result.Method, len(items))
	return result
}

// fetchGuarded shields the run from a panicking source implementation.
func fetchGuarded(ctx context.Context, src ports.Source) (items []domain.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = retry.Structural(fmt.Errorf("source panicked: %v", r))
		}
	}()
	return src.Fetch(ctx)
}

func reliability(method string, yield int) float64 {
	baseline := defaultYieldBaseline
	if method == "social-api" {
		baseline = socialYieldBaseline
	}
	score := float64(yield) / float64(baseline)
	if score > 1 {
		score = 1
	}
	return score
}

// dropArchived removes items whose URL was already collected by a previous
// run. Archive errors degrade to keeping everything.
func (o *Orchestrator) dropArchived(ctx context.Context, items []domain.Item) []domain.Item {
	if o.archive == nil || len(items) == 0 {
		return items
	}

	urls := make([]string, len(items))
	for i, item := range items {
		urls[i] = item.URL
	}

	seen, err := o.archive.SeenURLs(ctx, urls)
	if err != nil {
		o.logger.Warn("archive lookup failed, keeping all items", "error", err)
		return items
	}

	fresh := items[:0]
	for _, item := range items {
		if !seen[item.URL] {
			fresh = append(fresh, item)
		}
	}
	return fresh
}

// deduplicate collapses duplicates across all sources. The higher-scoring
// item of each pair survives; on equal scores the earlier-collected one wins.
// Engagement metrics are merged so the survivor carries the best of both.
func (o *Orchestrator) deduplicate(items []domain.Item) []domain.Item {
	analyzer := o.factory.Analyzer()
	kept := make([]domain.Item, 0, len(items))

	for _, candidate := range items {
		duplicate := false
		for i := range kept {
			if !analyzer.IsDuplicate(candidate, kept[i], o.run.SimilarityThreshold) {
				continue
			}
			duplicate = true
			if candidate.QualityScore > kept[i].QualityScore {
				kept[i] = mergeEngagement(candidate, kept[i])
			} else {
				kept[i] = mergeEngagement(kept[i], candidate)
			}
			break
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// mergeEngagement folds the loser's engagement into the winner, taking the
// maximum per metric.
func mergeEngagement(winner, loser domain.Item) domain.Item {
	if loser.Engagement == nil {
		return winner
	}

	merged := make(map[string]int, len(loser.Engagement))
	for k, v := range loser.Engagement {
		merged[k] = v
	}
	for k, v := range winner.Engagement {
		if v > merged[k] {
			merged[k] = v
		}
	}
	winner.Engagement = merged
	return winner
}

// sortCorpus orders the final corpus by quality, then recency.
func sortCorpus(items []domain.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].QualityScore != items[j].QualityScore {
			return items[i].QualityScore > items[j].QualityScore
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
