package ports

import (
	"context"
	"time"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/surface"
)

// TextGenerator sends a prompt to a hosted language model and returns its raw text reply.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ContentSource produces the visible text behind a post URL.
type ContentSource interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// BookmarkScanner discovers post identifiers on a rendered surface.
type BookmarkScanner interface {
	Scan(ctx context.Context, surf surface.Surface) ([]string, error)
}

// ContentExtractor pulls post text from markup or from a live surface.
type ContentExtractor interface {
	FromMarkup(markup string) string
	FromSurface(ctx context.Context, surf surface.Surface, target string) (string, error)
}

// SingleAnalyzer enriches one post identifier.
type SingleAnalyzer interface {
	AnalyzeURL(ctx context.Context, rawURL string) (domain.AnalysisRecord, error)
}

// BatchRunner analyses a list of identifiers in order, reporting progress.
type BatchRunner interface {
	RunBatch(ctx context.Context, urls []string, emit func(domain.BatchEvent)) []domain.AnalysisRecord
}

// ResultRepository keeps analysis history and usage counters.
type ResultRepository interface {
	SaveRecords(ctx context.Context, batchID string, records []domain.AnalysisRecord) error
	RecordExport(ctx context.Context) error
	Usage(ctx context.Context) (domain.Usage, error)
	History(ctx context.Context, limit int) ([]domain.AnalysisRecord, error)
}

// Exporter writes a batch of records to durable output and returns its location.
type Exporter interface {
	Export(ctx context.Context, records []domain.AnalysisRecord) (string, error)
}

// Notifier streams batch digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Metrics observes batch and item outcomes.
type Metrics interface {
	ObserveItem(kind domain.RecordKind, elapsed time.Duration)
	ObserveBatch(size int, elapsed time.Duration)
	ObserveScan(found int, err error)
}
