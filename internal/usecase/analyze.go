package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"BookmarkScanner/internal/analysis"
	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/identifier"
	"BookmarkScanner/internal/ports"
	"BookmarkScanner/internal/ratelimit"
	"BookmarkScanner/internal/retry"
	"BookmarkScanner/internal/sanitize"
)

// RecordAnalyzer produces a record for one post or a retryable error.
type RecordAnalyzer interface {
	Analyze(ctx context.Context, rawURL, content string) (domain.AnalysisRecord, error)
}

// AnalysisDeps wires the collaborators shared by single and batch analysis.
type AnalysisDeps struct {
	Adapter RecordAnalyzer
	// Surface is asked for post text before Source.
	Surface    ports.ContentSource
	Source     ports.ContentSource
	Limiter    *ratelimit.Limiter
	Retry      *retry.Orchestrator
	Repository ports.ResultRepository
	Metrics    ports.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// runner performs the content -> throttle -> retried analysis sequence.
type runner struct {
	adapter    RecordAnalyzer
	surface    ports.ContentSource
	source     ports.ContentSource
	limiter    *ratelimit.Limiter
	retry      *retry.Orchestrator
	repository ports.ResultRepository
	metrics    ports.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

func newRunner(deps AnalysisDeps) runner {
	r := runner{
		adapter:    deps.Adapter,
		surface:    deps.Surface,
		source:     deps.Source,
		limiter:    deps.Limiter,
		retry:      deps.Retry,
		repository: deps.Repository,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if r.adapter == nil {
		r.adapter = analysis.New(nil, deps.Logger)
	}
	if r.retry == nil {
		r.retry = retry.New(retry.DefaultMaxRetries, retry.DefaultBaseDelay, deps.Logger)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// analyze never panics: a panic inside a collaborator becomes the item's error.
func (r runner) analyze(ctx context.Context, rawURL string) (rec domain.AnalysisRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logError("analysis panicked", "url", rawURL, "panic", p)
			rec, err = domain.AnalysisRecord{}, fmt.Errorf("analysis of %s panicked: %v", identifier.Sanitize(rawURL), p)
		}
	}()

	content := r.content(ctx, rawURL)

	if err := r.limiter.Throttle(ctx, ratelimit.DefaultKey); err != nil {
		return domain.AnalysisRecord{}, err
	}

	return retry.Do(ctx, r.retry, rawURL, func(ctx context.Context) (domain.AnalysisRecord, error) {
		return r.adapter.Analyze(ctx, rawURL, content)
	})
}

// content prefers text rendered on the active surface and downloads the page
// otherwise.
func (r runner) content(ctx context.Context, rawURL string) string {
	if r.surface != nil {
		text, err := r.surface.Fetch(ctx, rawURL)
		if err == nil && text != "" {
			return text
		}
		r.debug("post not on surface", "url", rawURL, "error", err)
	}
	if r.source == nil {
		return ""
	}
	text, err := r.source.Fetch(ctx, rawURL)
	if err != nil {
		r.warn("content fetch failed", "url", rawURL, "error", err)
		return ""
	}
	return text
}

// finish stamps the capture time and a display title.
func (r runner) finish(rec domain.AnalysisRecord, rawURL string) domain.AnalysisRecord {
	if rec.URL == "" {
		rec.URL = identifier.Sanitize(rawURL)
	}
	rec.CapturedAt = r.now().UTC()
	rec.Title = titleFor(rec, rawURL)
	return rec
}

func (r runner) save(ctx context.Context, batchID string, records []domain.AnalysisRecord) {
	if r.repository == nil || len(records) == 0 {
		return
	}
	if err := r.repository.SaveRecords(ctx, batchID, records); err != nil {
		r.logError("save records failed", "batch_id", batchID, "count", len(records), "error", err)
	}
}

func titleFor(rec domain.AnalysisRecord, rawURL string) string {
	if title := sanitize.Display(rec.Headline()); title != "" {
		return title
	}
	if id, ok := identifier.StatusID(rawURL); ok {
		return "Post " + id
	}
	return "Untitled post"
}

func errorRecord(rawURL string, err error) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		URL:     identifier.Sanitize(rawURL),
		Kind:    domain.KindError,
		Topic:   "Error",
		Summary: "Analysis failed",
		Error:   sanitize.Error(err),
	}
}

func (r runner) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r runner) warn(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r runner) logError(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}

func (r runner) info(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

// Analyzer serves single-post analysis requests.
type Analyzer struct {
	runner
}

var _ ports.SingleAnalyzer = (*Analyzer)(nil)

// NewAnalyzer constructs the single-analysis use case.
func NewAnalyzer(deps AnalysisDeps) *Analyzer {
	return &Analyzer{runner: newRunner(deps)}
}

// AnalyzeURL validates rawURL and analyses it. Once retries are exhausted the
// deterministic fallback record is returned, so only invalid input and
// cancellation surface as errors.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) (domain.AnalysisRecord, error) {
	if !identifier.IsValid(rawURL) {
		return domain.AnalysisRecord{}, fmt.Errorf("analyze %q: %w", sanitize.Display(rawURL), domain.ErrInvalidIdentifier)
	}

	started := time.Now()
	rec, err := a.analyze(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return domain.AnalysisRecord{}, fmt.Errorf("analyze: %w", ctx.Err())
		}
		a.warn("analysis failed, using fallback", "url", rawURL, "error", err)
		rec = analysis.Fallback(rawURL)
	}
	rec = a.finish(rec, rawURL)

	if a.metrics != nil {
		a.metrics.ObserveItem(rec.Kind, time.Since(started))
	}
	a.save(ctx, "", []domain.AnalysisRecord{rec})
	return rec, nil
}
