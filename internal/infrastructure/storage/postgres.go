// Package storage persists run artifacts into Postgres. The archive is
// optional: the pipeline works without it, it only loses cross-run URL
// deduplication and run history.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"CryptoAggregator/internal/ports"
	"CryptoAggregator/internal/report"
)

// PostgresArchive stores run reports and their items.
type PostgresArchive struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.RunArchive = (*PostgresArchive)(nil)

// NewPostgresArchive wires a sql.DB implementation.
func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the archive tables when they do not exist yet.
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if a.db == nil {
		return nil
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS aggregation_runs (
			run_id       TEXT PRIMARY KEY,
			version      TEXT NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			window_end   TIMESTAMPTZ NOT NULL,
			total_items  INT NOT NULL,
			report       JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_items (
			url           TEXT PRIMARY KEY,
			run_id        TEXT NOT NULL REFERENCES aggregation_runs(run_id) ON DELETE CASCADE,
			source_name   TEXT NOT NULL,
			title         TEXT NOT NULL,
			method        TEXT NOT NULL,
			published_at  TIMESTAMPTZ NOT NULL,
			quality_score DOUBLE PRECISION NOT NULL,
			content_hash  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS run_items_hash_idx ON run_items (content_hash)`,
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeenURLs returns which of the given URLs already exist in the archive.
func (a *PostgresArchive) SeenURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	if a.db == nil || len(urls) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT url FROM run_items WHERE url = ANY($1)`

	rows, err := a.db.QueryContext(ctx, query, pq.StringArray(urls))
	if err != nil {
		return nil, fmt.Errorf("query seen urls: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		seen[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return seen, nil
}

// SaveRun stores the run metadata and every corpus item in one transaction.
func (a *PostgresArchive) SaveRun(ctx context.Context, artifact report.Artifact) error {
	if a.db == nil {
		return nil
	}

	reportJSON, err := json.Marshal(artifact.Metadata)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	runInsert := a.sb.Insert("aggregation_runs").
		Columns("run_id", "version", "generated_at", "window_start", "window_end", "total_items", "report").
		Values(
			artifact.Metadata.RunID,
			artifact.Metadata.Version,
			artifact.Metadata.GeneratedAt,
			artifact.Metadata.WindowStart,
			artifact.Metadata.WindowEnd,
			len(artifact.Items),
			reportJSON,
		).
		Suffix("ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report, total_items = EXCLUDED.total_items")

	if _, err := runInsert.RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, item := range artifact.Items {
		itemInsert := a.sb.Insert("run_items").
			Columns("url", "run_id", "source_name", "title", "method", "published_at", "quality_score", "content_hash").
			Values(
				item.URL,
				artifact.Metadata.RunID,
				item.SourceName,
				item.Title,
				item.Method,
				item.PublishedAt,
				item.QualityScore,
				item.ContentHash,
			).
			Suffix("ON CONFLICT (url) DO NOTHING")

		if _, err := itemInsert.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert item %s: %w", item.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}
