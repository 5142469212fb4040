package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/retry"
)

func newAnalyzer(adapter RecordAnalyzer, repo *memoryRepo) *Analyzer {
	deps := AnalysisDeps{
		Adapter: adapter,
		Retry:   retry.New(3, 0, nil),
		Now:     func() time.Time { return fixedNow },
	}
	if repo != nil {
		deps.Repository = repo
	}
	return NewAnalyzer(deps)
}

func TestAnalyzeURLRejectsInvalidIdentifier(t *testing.T) {
	a := newAnalyzer(newScriptedAdapter(), nil)

	for _, raw := range []string{"", "https://example.com/a/status/1", "https://x.com/alice"} {
		_, err := a.AnalyzeURL(context.Background(), raw)
		assert.ErrorIs(t, err, domain.ErrInvalidIdentifier, raw)
	}
}

func TestAnalyzeURLSuccess(t *testing.T) {
	repo := &memoryRepo{}
	a := newAnalyzer(newScriptedAdapter(), repo)

	rec, err := a.AnalyzeURL(context.Background(), "https://x.com/alice/status/1")
	require.NoError(t, err)

	assert.Equal(t, domain.KindAnalysis, rec.Kind)
	assert.Equal(t, "summary of https://x.com/alice/status/1", rec.Title)
	assert.Equal(t, fixedNow, rec.CapturedAt)
	assert.Len(t, repo.batches[""], 1)
}

func TestAnalyzeURLFallsBackAfterExhaustion(t *testing.T) {
	adapter := newScriptedAdapter()
	adapter.always = domain.ErrTimeout
	a := newAnalyzer(adapter, nil)

	rec, err := a.AnalyzeURL(context.Background(), "https://twitter.com/bob/status/77")
	require.NoError(t, err)

	assert.Equal(t, domain.KindFallback, rec.Kind)
	assert.Equal(t, "Twitter post", rec.Topic)
	assert.Equal(t, "Saved post 77 from twitter.com", rec.Title)
	assert.Equal(t, 3, adapter.calls["https://twitter.com/bob/status/77"])
}

func TestAnalyzeURLCancelled(t *testing.T) {
	adapter := newScriptedAdapter()
	adapter.always = domain.ErrTimeout
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAnalyzer(adapter, nil).AnalyzeURL(ctx, "https://x.com/a/status/1")
	assert.ErrorIs(t, err, context.Canceled)
}
