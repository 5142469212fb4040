package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookmarkScanner/internal/app"
	"BookmarkScanner/internal/config"
	"BookmarkScanner/internal/logging"
)

const bookmarksPage = `<html><body>
<article data-testid="tweet"><a href="/alice/status/111">one</a><div data-testid="tweetText">First post</div></article>
<article data-testid="tweet"><a href="/bob/status/222/photo/1">two</a><div data-testid="tweetText">Second post</div></article>
<a href="https://x.com/alice/status/111?s=20">dup</a>
</body></html>`

// setupApp builds an application backed by the in-memory store.
func setupApp(t *testing.T) (*app.Application, string) {
	t.Helper()
	exportDir := filepath.Join(t.TempDir(), "exports")

	cfg := config.Default()
	cfg.Database.Driver = "memory"
	cfg.Export.Directory = exportDir
	cfg.Batch.AnalysisDelay = 0
	cfg.Retry.BaseDelay = 0
	cfg.Scanner.ContentWait = 0
	cfg.Scanner.MaxScrollCycles = 0

	a, err := app.New(context.Background(), cfg, logging.NewWithWriter(&bytes.Buffer{}, "error"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, exportDir
}

// runCLI executes args and returns stdout, stderr and the run error.
func runCLI(t *testing.T, a *app.Application, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cliApp := newCLIApp(a, strings.NewReader(stdin), &out, &errOut)
	err := cliApp.RunContext(context.Background(), append([]string{"bookmarkscanner"}, args...))
	return out.String(), errOut.String(), err
}

func TestScanFromStdin(t *testing.T) {
	a, _ := setupApp(t)

	out, _, err := runCLI(t, a, bookmarksPage, "scan")
	require.NoError(t, err)

	var got struct {
		URLs  []string `json:"urls"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"https://x.com/alice/status/111", "https://x.com/bob/status/222"}, got.URLs)
	assert.Equal(t, 2, got.Count)
}

func TestScanFromFile(t *testing.T) {
	a, _ := setupApp(t)
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(bookmarksPage), 0o644))

	out, _, err := runCLI(t, a, "", "scan", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 2`)
}

func TestExtractWholePage(t *testing.T) {
	a, _ := setupApp(t)

	out, _, err := runCLI(t, a, "<html><head><title>Saved</title></head><body><h1>Hello there</h1></body></html>", "extract")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello there")
}

func TestFetchRequiresOneArgument(t *testing.T) {
	a, _ := setupApp(t)

	_, _, err := runCLI(t, a, "", "fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly one url")
}

func TestAnalyzeRejectsInvalidURL(t *testing.T) {
	a, _ := setupApp(t)

	_, _, err := runCLI(t, a, "", "analyze", "https://example.com/not-a-post")
	require.Error(t, err)
}

func TestBatchStatsAndExport(t *testing.T) {
	a, exportDir := setupApp(t)

	// Non-http inputs never reach the network and fall back locally.
	list := "# saved\nnot-a-url\n\nstill-not-a-url\n"
	out, errOut, err := runCLI(t, a, list, "batch", "--file", "-")
	require.NoError(t, err)

	var batch struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	require.Len(t, batch.Results, 2)
	assert.Contains(t, errOut, "[1/2]")
	assert.Contains(t, errOut, "[2/2]")

	out, _, err = runCLI(t, a, "", "stats", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"history"`)

	out, _, err = runCLI(t, a, "", "export")
	require.NoError(t, err)

	var exported struct {
		Path  string `json:"path"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	assert.Equal(t, 2, exported.Count)
	assert.Equal(t, exportDir, filepath.Dir(exported.Path))
	_, err = os.Stat(exported.Path)
	require.NoError(t, err)

	usage, err := a.Repository.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.TotalExports)
}

func TestBatchWithoutURLs(t *testing.T) {
	a, _ := setupApp(t)

	_, _, err := runCLI(t, a, "", "batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no post urls given")
}

func TestExportWithEmptyHistory(t *testing.T) {
	a, _ := setupApp(t)

	_, _, err := runCLI(t, a, "", "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to export")
}

func TestReadLinesSkipsCommentsAndBlanks(t *testing.T) {
	lines, err := readLines("-", strings.NewReader(" a \n\n# c\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}
