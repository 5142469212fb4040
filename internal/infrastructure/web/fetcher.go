package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"

	"BookmarkScanner/internal/config"
	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/infrastructure/parser"
	"BookmarkScanner/internal/ports"
	"BookmarkScanner/internal/sanitize"
)

const maxBodyBytes = 2 << 20

// Fetcher downloads a page and reduces it to analysis-ready text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ ports.ContentSource = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; nil gets one bounded by cfg.Timeout.
func NewFetcher(cfg config.FetcherConfig, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, userAgent: cfg.UserAgent, logger: logger}
}

// Fetch returns the sanitized text of rawURL. The selector chain runs first;
// when it finds nothing beyond the page title the reader view is used instead.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || pageURL.Host == "" || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return "", fmt.Errorf("fetch %q: %w", rawURL, domain.ErrInvalidIdentifier)
	}

	body, err := f.download(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	text := parser.DocumentText(doc)
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if text == "" || text == title {
		if reader := f.readerText(body, pageURL); reader != "" {
			text = reader
		}
	}

	return sanitize.Content(text), nil
}

func (f *Fetcher) download(ctx context.Context, pageURL *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &domain.RemoteServiceError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (f *Fetcher) readerText(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		f.debug("readability failed", "url", pageURL.String(), "error", err)
		return ""
	}
	var buf strings.Builder
	if err := article.RenderText(&buf); err != nil {
		f.debug("readability render failed", "url", pageURL.String(), "error", err)
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func (f *Fetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
