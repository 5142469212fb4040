package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookmarkScanner/internal/config"
	"BookmarkScanner/internal/logging"
	"BookmarkScanner/internal/messaging"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}
	cfg.Export.Directory = filepath.Join(t.TempDir(), "exports")
	cfg.Batch.AnalysisDelay = 0
	cfg.Scanner.ContentWait = 0
	cfg.Scanner.MaxScrollCycles = 0
	return cfg
}

func TestNewWiresSQLiteStore(t *testing.T) {
	var logs bytes.Buffer
	a, err := New(context.Background(), testConfig(t), logging.NewWithWriter(&logs, "debug"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.NotNil(t, a.db)
	assert.Contains(t, logs.String(), "gemini api key not set")

	usage, err := a.Repository.Usage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, usage.TotalAnalyzed)
}

func TestNewRejectsBadExportFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "xlsx"

	_, err := New(context.Background(), cfg, logging.NewWithWriter(&bytes.Buffer{}, "error"))
	assert.Error(t, err)
}

func TestRouterServesMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.Database.Driver = "memory"

	a, err := New(context.Background(), cfg, logging.NewWithWriter(&bytes.Buffer{}, "error"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"action":"parseHtmlContent","html":"<title>Only title</title>"}`))
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"content":"Only title"`)

	resp := a.Dispatcher.Handle(context.Background(), messaging.Request{Action: "nope"}, nil)
	assert.False(t, resp.Success)
}
