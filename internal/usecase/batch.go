package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/ports"
)

// BatchDeps extends AnalysisDeps with the post-batch collaborators.
type BatchDeps struct {
	AnalysisDeps

	MaxItems   int
	Exporter   ports.Exporter
	AutoExport bool
	Notifier   ports.Notifier
}

// BatchProcessor analyses identifiers strictly one at a time, in input order.
type BatchProcessor struct {
	runner

	maxItems   int
	exporter   ports.Exporter
	autoExport bool
	notifier   ports.Notifier

	mu   sync.Mutex
	last domain.BatchJob
}

var _ ports.BatchRunner = (*BatchProcessor)(nil)

// NewBatchProcessor constructs the batch use case.
func NewBatchProcessor(deps BatchDeps) *BatchProcessor {
	maxItems := deps.MaxItems
	if maxItems <= 0 || maxItems > domain.MaxBatchSize {
		maxItems = domain.MaxBatchSize
	}
	return &BatchProcessor{
		runner:     newRunner(deps.AnalysisDeps),
		maxItems:   maxItems,
		exporter:   deps.Exporter,
		autoExport: deps.AutoExport,
		notifier:   deps.Notifier,
		last:       domain.BatchJob{State: domain.BatchIdle},
	}
}

// RunBatch returns exactly one record per processed identifier, in order.
// Item failures become error records; the batch itself never fails.
func (p *BatchProcessor) RunBatch(ctx context.Context, urls []string, emit func(domain.BatchEvent)) []domain.AnalysisRecord {
	if len(urls) > p.maxItems {
		p.info("batch truncated", "requested", len(urls), "max", p.maxItems)
		urls = urls[:p.maxItems]
	}

	job := domain.BatchJob{
		ID:        uuid.NewString(),
		URLs:      append([]string(nil), urls...),
		Results:   make([]domain.AnalysisRecord, 0, len(urls)),
		State:     domain.BatchRunning,
		StartedAt: p.now().UTC(),
	}
	p.track(job)
	p.info("batch started", "batch_id", job.ID, "total", len(urls))

	for _, rawURL := range urls {
		started := time.Now()
		rec, err := p.analyze(ctx, rawURL)
		if err != nil {
			p.warn("item failed", "batch_id", job.ID, "url", rawURL, "error", err)
			rec = errorRecord(rawURL, err)
		}
		rec = p.finish(rec, rawURL)

		job.Results = append(job.Results, rec)
		job.Completed++
		p.track(job)
		if p.metrics != nil {
			p.metrics.ObserveItem(rec.Kind, time.Since(started))
		}

		send(emit, domain.BatchEvent{
			Type:      domain.EventProgress,
			BatchID:   job.ID,
			Completed: job.Completed,
			Total:     len(urls),
			Results:   append([]domain.AnalysisRecord(nil), job.Results...),
		})
	}

	job.State = domain.BatchComplete
	job.FinishedAt = p.now().UTC()
	p.track(job)
	if p.metrics != nil {
		p.metrics.ObserveBatch(len(urls), job.FinishedAt.Sub(job.StartedAt))
	}

	p.afterBatch(ctx, job)

	send(emit, domain.BatchEvent{
		Type:      domain.EventComplete,
		BatchID:   job.ID,
		Completed: job.Completed,
		Total:     len(urls),
		Results:   job.Results,
	})
	p.info("batch complete", "batch_id", job.ID, "completed", job.Completed)

	return job.Results
}

// LastJob returns a copy of the most recent batch state.
func (p *BatchProcessor) LastJob() domain.BatchJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	job := p.last
	job.URLs = append([]string(nil), p.last.URLs...)
	job.Results = append([]domain.AnalysisRecord(nil), p.last.Results...)
	return job
}

func (p *BatchProcessor) track(job domain.BatchJob) {
	p.mu.Lock()
	p.last = job
	p.mu.Unlock()
}

func (p *BatchProcessor) afterBatch(ctx context.Context, job domain.BatchJob) {
	if len(job.Results) == 0 {
		return
	}

	p.save(ctx, job.ID, job.Results)

	if p.autoExport && p.exporter != nil {
		location, err := p.exporter.Export(ctx, job.Results)
		if err != nil {
			p.logError("auto export failed", "batch_id", job.ID, "error", err)
		} else {
			p.info("batch exported", "batch_id", job.ID, "location", location)
			if p.repository != nil {
				if err := p.repository.RecordExport(ctx); err != nil {
					p.logError("record export failed", "error", err)
				}
			}
		}
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, Digest(job.Results)); err != nil {
			p.logError("publish digest failed", "batch_id", job.ID, "error", err)
		}
	}
}

// Digest renders a short Markdown summary of a finished batch.
func Digest(records []domain.AnalysisRecord) string {
	var b strings.Builder
	failed := 0
	for _, rec := range records {
		if rec.Kind == domain.KindError {
			failed++
		}
	}
	fmt.Fprintf(&b, "*Bookmark batch:* %d analysed, %d failed\n", len(records)-failed, failed)
	for _, rec := range records {
		if rec.Kind == domain.KindError {
			continue
		}
		fmt.Fprintf(&b, "\n• %s\n%s\n", rec.Title, rec.URL)
		if rec.ActionPoint != nil {
			fmt.Fprintf(&b, "_Next:_ %s\n", *rec.ActionPoint)
		}
	}
	return b.String()
}

func send(emit func(domain.BatchEvent), ev domain.BatchEvent) {
	if emit != nil {
		emit(ev)
	}
}
