package storage

import (
	"context"
	"sync"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/ports"
)

// MemoryRepository keeps history in process memory. It backs the CLI when no
// database driver is configured and doubles as a test fake.
type MemoryRepository struct {
	mu      sync.RWMutex
	history []domain.AnalysisRecord
	usage   domain.Usage
}

var _ ports.ResultRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) SaveRecords(_ context.Context, _ string, records []domain.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.history = append(m.history, rec)
		if rec.Kind != domain.KindError {
			m.usage.TotalAnalyzed++
		}
	}
	return nil
}

func (m *MemoryRepository) RecordExport(context.Context) error {
	m.mu.Lock()
	m.usage.TotalExports++
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) Usage(context.Context) (domain.Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usage, nil
}

// History returns up to limit records, newest first.
func (m *MemoryRepository) History(_ context.Context, limit int) ([]domain.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.AnalysisRecord, 0, n)
	for i := len(m.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}
