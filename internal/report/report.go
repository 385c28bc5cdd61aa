// Package report builds the versioned run artifact downstream consumers
// parse structurally. Field names and nesting are part of the contract;
// bump Version when either changes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"CryptoAggregator/internal/domain"
)

// Version identifies the artifact schema.
const Version = "1.1.0"

// Quality distribution bucket boundaries.
const (
	highQualityFloor   = 0.7
	mediumQualityFloor = 0.4
)

// Report is the run metadata half of the artifact.
type Report struct {
	Version     string    `json:"version"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Execution ExecutionMetrics      `json:"execution"`
	Content   ContentMetrics        `json:"content"`
	Quality   QualityDistribution   `json:"quality_distribution"`
	Methods   map[string]int        `json:"items_by_method"`
	Topics    []TopicCount          `json:"topic_distribution"`
	Sources   []domain.SourceResult `json:"source_performance"`
}

// ExecutionMetrics aggregates per-run timing and success counts.
type ExecutionMetrics struct {
	TotalSources      int           `json:"total_sources"`
	SuccessfulSources int           `json:"successful_sources"`
	FailedSources     int           `json:"failed_sources"`
	SuccessRate       float64       `json:"success_rate"`
	TotalDuration     time.Duration `json:"total_duration"`
}

// ContentMetrics aggregates corpus-level counts.
type ContentMetrics struct {
	ItemsBeforeDedup  int     `json:"items_before_dedup"`
	ItemsAfterDedup   int     `json:"items_after_dedup"`
	DuplicatesRemoved int     `json:"duplicates_removed"`
	TotalWords        int     `json:"total_words"`
	AverageWords      float64 `json:"average_words"`
	AverageQuality    float64 `json:"average_quality"`
}

// QualityDistribution buckets surviving items by quality score.
type QualityDistribution struct {
	High       int `json:"high"`       // score >= 0.7
	Medium     int `json:"medium"`     // 0.4 <= score < 0.7
	Acceptable int `json:"acceptable"` // score < 0.4
}

// TopicCount is one entry of the topic distribution, most common first.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Artifact is the complete run output: metadata plus the ordered corpus.
type Artifact struct {
	Metadata Report        `json:"metadata"`
	Items    []domain.Item `json:"items"`
}

// Build assembles the report from per-source results and the final corpus.
func Build(runID string, windowStart, windowEnd time.Time, results []domain.SourceResult, rawCount int, corpus []domain.Item, elapsed time.Duration) Report {
	rep := Report{
		Version:     Version,
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Methods:     map[string]int{},
		Sources:     results,
	}

	for _, result := range results {
		rep.Execution.TotalSources++
		if result.Success {
			rep.Execution.SuccessfulSources++
		} else {
			rep.Execution.FailedSources++
		}
	}
	if rep.Execution.TotalSources > 0 {
		rep.Execution.SuccessRate = float64(rep.Execution.SuccessfulSources) / float64(rep.Execution.TotalSources)
	}
	rep.Execution.TotalDuration = elapsed

	rep.Content.ItemsBeforeDedup = rawCount
	rep.Content.ItemsAfterDedup = len(corpus)
	rep.Content.DuplicatesRemoved = rawCount - len(corpus)

	topicCounts := map[string]int{}
	totalQuality := 0.0
	for _, item := range corpus {
		rep.Content.TotalWords += item.WordCount
		totalQuality += item.QualityScore
		rep.Methods[item.Method]++

		switch {
		case item.QualityScore >= highQualityFloor:
			rep.Quality.High++
		case item.QualityScore >= mediumQualityFloor:
			rep.Quality.Medium++
		default:
			rep.Quality.Acceptable++
		}

		for _, topic := range item.Topics {
			topicCounts[topic]++
		}
	}

	if len(corpus) > 0 {
		rep.Content.AverageWords = float64(rep.Content.TotalWords) / float64(len(corpus))
		rep.Content.AverageQuality = totalQuality / float64(len(corpus))
	}

	rep.Topics = sortTopicCounts(topicCounts)
	return rep
}

func sortTopicCounts(counts map[string]int) []TopicCount {
	out := make([]TopicCount, 0, len(counts))
	for topic, count := range counts {
		out = append(out, TopicCount{Topic: topic, Count: count})
	}

	// Count descending, name ascending for equal counts: keeps the artifact
	// deterministic across runs with identical corpora.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

// Write serializes the artifact as indented JSON.
func (a Artifact) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}

// WriteFile writes the artifact to path, creating or truncating it.
func (a Artifact) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}

	if err := a.Write(f); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close artifact file: %w", err)
	}
	return nil
}
