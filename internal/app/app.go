package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"BookmarkScanner/internal/analysis"
	"BookmarkScanner/internal/config"
	"BookmarkScanner/internal/infrastructure/export"
	"BookmarkScanner/internal/infrastructure/llm"
	"BookmarkScanner/internal/infrastructure/parser"
	"BookmarkScanner/internal/infrastructure/storage"
	"BookmarkScanner/internal/infrastructure/telegram"
	"BookmarkScanner/internal/infrastructure/web"
	"BookmarkScanner/internal/logging"
	"BookmarkScanner/internal/messaging"
	"BookmarkScanner/internal/metrics"
	"BookmarkScanner/internal/ports"
	"BookmarkScanner/internal/ratelimit"
	"BookmarkScanner/internal/retry"
	"BookmarkScanner/internal/scanner"
	"BookmarkScanner/internal/surface"
	"BookmarkScanner/internal/transport/httpapi"
	"BookmarkScanner/internal/usecase"
)

// Application wires configs to use cases and the outer transports.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB

	Metrics    *metrics.Collector
	Repository ports.ResultRepository
	Exporter   *export.Exporter
	Fetcher    *web.Fetcher
	Scanner    *scanner.Scanner
	Extractor  *parser.ContentExtractor
	Analyzer   *usecase.Analyzer
	Batch      *usecase.BatchProcessor
	Dispatcher *messaging.Dispatcher
}

// New builds a runnable application. Close releases the database, if any.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	repo, db, err := openRepository(ctx, cfg.Database, baseLogger)
	if err != nil {
		return nil, err
	}

	exporter, err := export.New(cfg.Export)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("export config: %w", err)
	}

	var generator ports.TextGenerator
	if cfg.Gemini.APIKey != "" {
		generator = llm.NewGeminiClient(cfg.Gemini, nil)
	} else {
		baseLogger.Warn("gemini api key not set, analyses will use fallback records")
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram, nil)
	}

	collector := metrics.New()
	fetcher := web.NewFetcher(cfg.Fetcher, nil, baseLogger.With("component", "fetcher"))
	extractor := parser.NewContentExtractor(cfg.Scanner.PostMarker, baseLogger.With("component", "extractor"))
	surfaces := &surface.Active{}

	analysisDeps := usecase.AnalysisDeps{
		Adapter:    analysis.New(generator, baseLogger.With("component", "analysis")),
		Surface:    parser.NewSurfaceSource(surfaces, extractor),
		Source:     fetcher,
		Limiter:    ratelimit.New(cfg.Batch.AnalysisDelay),
		Retry:      retry.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, baseLogger.With("component", "retry")),
		Repository: repo,
		Metrics:    collector,
		Logger:     baseLogger.With("component", "usecase"),
	}

	analyzer := usecase.NewAnalyzer(analysisDeps)
	batch := usecase.NewBatchProcessor(usecase.BatchDeps{
		AnalysisDeps: analysisDeps,
		MaxItems:     cfg.Batch.MaxItems,
		Exporter:     exporter,
		AutoExport:   cfg.Export.AutoExport,
		Notifier:     notifier,
	})

	bookmarkScanner := scanner.New(parser.NewRegistry(cfg.Scanner.PostMarker), scanner.Config{
		MaxIdentifiers:  cfg.Scanner.MaxIdentifiers,
		ContentWait:     cfg.Scanner.ContentWait,
		MaxScrollCycles: cfg.Scanner.MaxScrollCycles,
		ScrollWait:      cfg.Scanner.ScrollWait,
		PostMarker:      cfg.Scanner.PostMarker,
	}, baseLogger.With("component", "scanner"))
	dispatcher := messaging.NewDispatcher(messaging.Deps{
		Analyzer:  analyzer,
		Batch:     batch,
		Source:    fetcher,
		Extractor: extractor,
		Scanner:   bookmarkScanner,
		Surfaces:  surfaces,
		Metrics:   collector,
		Logger:    baseLogger.With("component", "messaging"),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		Metrics:    collector,
		Repository: repo,
		Exporter:   exporter,
		Fetcher:    fetcher,
		Scanner:    bookmarkScanner,
		Extractor:  extractor,
		Analyzer:   analyzer,
		Batch:      batch,
		Dispatcher: dispatcher,
	}, nil
}

// Router builds the HTTP handler for the messaging API.
func (a *Application) Router() *gin.Engine {
	return httpapi.NewRouter(httpapi.Deps{
		Dispatcher: a.Dispatcher,
		Repository: a.Repository,
		LastJob:    a.Batch.LastJob,
		Metrics:    a.Metrics.Handler(),
		Logger:     a.logger.With("component", "http"),
	})
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	server := httpapi.NewServer(a.cfg.HTTP.Addr, a.Router(), a.cfg.HTTP.ShutdownTimeout, a.logger.With("component", "http"))
	return server.Run(ctx)
}

// Close releases resources held by the application.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (ports.ResultRepository, *sql.DB, error) {
	if cfg.Driver == "" || cfg.Driver == "memory" {
		logger.Info("using in-memory result store")
		return storage.NewMemoryRepository(), nil, nil
	}

	db, dialect, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open result store: %w", err)
	}
	if err := storage.Migrate(ctx, db, dialect); err != nil {
		closeDB(db)
		return nil, nil, err
	}
	logger.Info("result store ready", "driver", string(dialect))
	return storage.NewSQLRepository(db, dialect), db, nil
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
