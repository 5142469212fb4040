package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookmarkScanner/internal/domain"
)

func TestObserveItemAndBatch(t *testing.T) {
	c := New()

	c.ObserveItem(domain.KindAnalysis, 2*time.Second)
	c.ObserveItem(domain.KindError, time.Second)
	c.ObserveItem(domain.KindAnalysis, time.Second)
	c.ObserveBatch(3, 4*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ItemsTotal.WithLabelValues("analysis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ItemsTotal.WithLabelValues("error")))
}

func TestObserveScanOutcomes(t *testing.T) {
	c := New()

	c.ObserveScan(12, nil)
	c.ObserveScan(0, domain.ErrScanInProgress)
	c.ObserveScan(0, domain.ErrNoSurface)
	c.ObserveScan(0, errors.New("boom"))

	for _, status := range []string{"ok", "busy", "no_surface", "error"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(c.ScansTotal.WithLabelValues(status)), status)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	c := New()
	c.ObserveItem(domain.KindFallback, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `bookmarkscanner_items_total{kind="fallback"} 1`))
}
