// Package app wires configuration into the running aggregation pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"CryptoAggregator/internal/analysis"
	"CryptoAggregator/internal/config"
	"CryptoAggregator/internal/infrastructure/browser"
	"CryptoAggregator/internal/infrastructure/feed"
	"CryptoAggregator/internal/infrastructure/scheduler"
	"CryptoAggregator/internal/infrastructure/social"
	"CryptoAggregator/internal/infrastructure/storage"
	"CryptoAggregator/internal/logging"
	"CryptoAggregator/internal/ports"
	"CryptoAggregator/internal/source"
	"CryptoAggregator/internal/usecase"
)

// Application owns the assembled pipeline and its optional collaborators.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	archiveDB    interface{ Close() error }
	outputPath   string
}

// New assembles the pipeline. Credential-gated components (social API,
// browser targets, run archive) are wired only when their prerequisites are
// met; the pipeline always runs with whatever sources remain.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, outputPath string) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	run := cfg.Run()
	analyzer := analysis.NewAnalyzer(keywordsFrom(cfg.Keywords), taxonomyFrom(cfg.Topics))
	factory := source.NewFactory(run, analyzer)

	httpClient := &http.Client{Timeout: run.RequestTimeout}

	var sources []ports.Source
	for _, fc := range cfg.Feeds {
		sources = append(sources, feed.NewSource(fc.Name, fc.URL, httpClient, factory, run,
			logging.Component(baseLogger, "source.feed")))
	}

	if run.BrowserEnabled {
		renderer := browser.NewHTTPRenderer(run.RequestTimeout)
		for _, target := range cfg.Browser.Targets {
			sources = append(sources, browser.NewSource(target, cfg.Browser, renderer, factory, run,
				logging.Component(baseLogger, "source.browser")))
		}
	} else {
		baseLogger.Info("browser sources disabled")
	}

	if run.SocialEnabled {
		client := social.NewClient(cfg.Social.APIBaseURL, cfg.Social.BearerToken, run.RequestTimeout)
		sources = append(sources, social.NewSource(cfg.Social, client, factory, run,
			logging.Component(baseLogger, "source.social")))
	} else {
		baseLogger.Info("social source disabled, no bearer token")
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	appInstance := &Application{cfg: cfg, logger: baseLogger, outputPath: outputPath}

	var archive ports.RunArchive
	if run.ArchiveEnabled {
		db, err := storage.Open(ctx, cfg.Archive.DSN)
		if err != nil {
			baseLogger.Warn("archive unavailable, continuing without it", "error", err)
		} else {
			pg := storage.NewPostgresArchive(db)
			if err := pg.EnsureSchema(ctx); err != nil {
				baseLogger.Warn("archive schema setup failed, continuing without it", "error", err)
				_ = db.Close()
			} else {
				archive = pg
				appInstance.archiveDB = db
			}
		}
	}

	appInstance.orchestrator = usecase.NewOrchestrator(run, factory, sources, archive,
		logging.Component(baseLogger, "orchestrator"))
	return appInstance, nil
}

// Run executes the pipeline: once by default, or on an interval when the
// scheduler is enabled. Each completed pass writes its artifact to the
// output path.
func (a *Application) Run(ctx context.Context) error {
	if !a.cfg.Scheduler.Enabled {
		return a.runOnce(ctx)
	}

	interval := time.Duration(a.cfg.Scheduler.IntervalHours) * time.Hour
	sched := scheduler.NewIntervalScheduler(interval)
	if err := sched.Start(ctx, func(time.Time) {
		if err := a.runOnce(ctx); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { _ = sched.Stop(context.Background()) }()

	<-ctx.Done()
	return ctx.Err()
}

func (a *Application) runOnce(ctx context.Context) error {
	artifact, err := a.orchestrator.Execute(ctx)
	if err != nil {
		return fmt.Errorf("execute run: %w", err)
	}

	if a.outputPath == "" || a.outputPath == "-" {
		return artifact.Write(os.Stdout)
	}
	if err := artifact.WriteFile(a.outputPath); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	a.logger.Info("artifact written", "path", a.outputPath, "items", len(artifact.Items))
	return nil
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.archiveDB != nil {
		return a.archiveDB.Close()
	}
	return nil
}

// keywordsFrom maps configured keyword tiers onto the analyzer's types.
// Empty tiers fall back to the built-in defaults inside NewAnalyzer.
func keywordsFrom(kc config.KeywordsConfig) analysis.Keywords {
	return analysis.Keywords{
		HighValue:   kc.HighValue,
		MediumValue: kc.MediumValue,
		LowValue:    kc.LowValue,
		Technical:   kc.Technical,
		Analytical:  kc.Analytical,
		Anchors:     kc.Anchors,
	}
}

func taxonomyFrom(topics []config.TopicConfig) []analysis.Topic {
	if len(topics) == 0 {
		return nil
	}
	taxonomy := make([]analysis.Topic, len(topics))
	for i, t := range topics {
		taxonomy[i] = analysis.Topic{Name: t.Name, Keywords: t.Keywords}
	}
	return taxonomy
}
