package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/core/usecase"
	"github.com/kirillkom/docqa/internal/infrastructure/chunking"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor/imagedoc"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/docqa/internal/infrastructure/index/workerpool"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/groq"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docqa/internal/infrastructure/ocr"
	"github.com/kirillkom/docqa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docqa/internal/infrastructure/registry/memory"
	"github.com/kirillkom/docqa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
	"github.com/kirillkom/docqa/internal/observability/metrics"
	"github.com/kirillkom/docqa/internal/observability/telemetry"
)

type App struct {
	Config config.Config

	Events   *telemetry.Ring
	Registry *memory.Registry
	Metrics  *metrics.Metrics
	Chain    *usecase.AnswerChain

	IngestUC  *usecase.IngestDocumentUseCase
	QueryUC   *usecase.QueryUseCase
	CatalogUC *usecase.CatalogUseCase

	Ledger    *postgres.SessionLedger
	Publisher *nats.Publisher

	closeFns []func()
}

// New wires the whole engine. Postgres and NATS are attached only when their
// settings are present.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:   cfg,
		Events:   telemetry.NewRing(telemetry.DefaultCapacity, logger),
		Registry: memory.NewRegistry(),
		Metrics:  metrics.New(service),
	}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	retryHook := func(operation string, attempt int, wait time.Duration, err error) {
		app.Events.Warn("RETRY", fmt.Sprintf("%s attempt %d failed (%v), waiting %s", operation, attempt, err, wait))
	}

	local := ollama.New(ollama.Config{
		BaseURL:        cfg.OllamaURL,
		Model:          cfg.OllamaModel,
		Timeout:        cfg.OllamaTimeout,
		BreakerEnabled: cfg.LocalBreakerEnabled,
		ContextBudget:  cfg.MaxContextChars,
	})
	remote := groq.New(groq.Config{
		BaseURL:        cfg.GroqURL,
		APIKey:         cfg.GroqAPIKey,
		Model:          cfg.GroqModel,
		VisionModel:    cfg.GroqVisionModel,
		Timeout:        cfg.GroqTimeout,
		Attempts:       cfg.RemoteRetryAttempts,
		RateLimitDelay: cfg.RemoteRateLimitDelay,
		RetryDelay:     cfg.RemoteRetryDelay,
		ContextBudget:  cfg.MaxContextChars,
	}).WithRetryHook(retryHook)

	tiers := []ports.AnswerTier{local, remote}
	var vision ports.VisionBackend = remote.Vision()
	if cfg.GeminiAPIKey != "" {
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			Timeout:        cfg.GroqTimeout,
			Attempts:       cfg.RemoteRetryAttempts,
			RateLimitDelay: cfg.RemoteRateLimitDelay,
			RetryDelay:     cfg.RemoteRetryDelay,
			ContextBudget:  cfg.MaxContextChars,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		g.WithRetryHook(retryHook)
		app.closeFns = append(app.closeFns, func() { _ = g.Close() })
		tiers = append(tiers, g)
		if cfg.VisionProvider == "gemini" {
			vision = g
		}
	}
	app.Chain = usecase.NewAnswerChain(app.Events, tiers...).WithObserver(app.Metrics)

	var ocrClient ports.OCR
	if cfg.OCRURL != "" {
		ocrClient = ocr.New(cfg.OCRURL, cfg.OCRConcurrency, 0)
	}
	docs := extractor.NewRouter(
		pdf.New(ocrClient, app.Events),
		imagedoc.New(vision, app.Events),
	)

	builder, err := workerpool.NewBuilder(cfg.IndexWorkers, logger)
	if err != nil {
		return nil, err
	}
	builder.WithObserver(app.Metrics)
	app.closeFns = append(app.closeFns, builder.Close)

	app.IngestUC = usecase.NewIngestDocumentUseCase(
		docs,
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		builder,
		app.Registry,
		app.Events,
	).WithObserver(app.Metrics)

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })
		if err := attachLedger(ctx, app, db); err != nil {
			return nil, err
		}
	}

	if cfg.NATSURL != "" {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init session events: %w", err)
		}
		app.closeFns = append(app.closeFns, publisher.Close)
		app.Publisher = publisher
		app.IngestUC.WithPublisher(publisher)
	}

	pipeline := usecase.NewPipeline(app.Registry, app.Chain, app.Events, cfg.MaxContextChars)
	app.QueryUC = usecase.NewQueryUseCase(app.Registry, pipeline, app.Events).WithObserver(app.Metrics)
	app.CatalogUC = usecase.NewCatalogUseCase(app.Registry, app.Events)

	logger.Info("engine_ready",
		"tiers", app.Chain.Tiers(),
		"vision", vision.Name(),
		"ocr_enabled", ocrClient != nil,
		"ledger_enabled", app.Ledger != nil,
		"events_enabled", app.Publisher != nil,
	)
	ok = true
	return app, nil
}

func attachLedger(ctx context.Context, app *App, db *sql.DB) error {
	ledger := postgres.NewSessionLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	app.Ledger = ledger
	app.IngestUC.WithLedger(ledger)
	return nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
