// Package messaging routes action-addressed requests to the pipeline use cases.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/ports"
	"BookmarkScanner/internal/sanitize"
	"BookmarkScanner/internal/surface"
)

// Supported actions.
const (
	ActionAnalyzeURL          = "analyzeUrl"
	ActionFetchContent        = "fetchContent"
	ActionBatchAnalyze        = "batchAnalyze"
	ActionParseHTMLContent    = "parseHtmlContent"
	ActionExtractTweetContent = "extractTweetContent"
	ActionScanBookmarks       = "scanBookmarks"
)

var errUnavailable = errors.New("handler not configured")

// Request is one inbound message. Command is accepted as an alias of Action.
type Request struct {
	Action  string   `json:"action,omitempty"`
	Command string   `json:"command,omitempty"`
	URL     string   `json:"url,omitempty"`
	URLs    []string `json:"urls,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// Name returns the addressed action.
func (r Request) Name() string {
	if r.Action != "" {
		return r.Action
	}
	return r.Command
}

// Response is the reply to a Request. Only the fields relevant to the action are set.
type Response struct {
	Success bool                    `json:"success"`
	Error   string                  `json:"error,omitempty"`
	Result  *domain.AnalysisRecord  `json:"result,omitempty"`
	Content *string                 `json:"content,omitempty"`
	URLs    []string                `json:"urls,omitempty"`
	Results []domain.AnalysisRecord `json:"results,omitempty"`
}

// Deps wires the dispatcher to its collaborators. Nil members make their actions fail.
type Deps struct {
	Analyzer  ports.SingleAnalyzer
	Batch     ports.BatchRunner
	Source    ports.ContentSource
	Extractor ports.ContentExtractor
	Scanner   ports.BookmarkScanner
	Surfaces  *surface.Active
	Metrics   ports.Metrics
	Logger    *slog.Logger
}

// Dispatcher implements the request/response protocol.
type Dispatcher struct {
	deps Deps
}

// NewDispatcher wires deps; a nil Surfaces gets an empty slot.
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Surfaces == nil {
		deps.Surfaces = &surface.Active{}
	}
	return &Dispatcher{deps: deps}
}

// Surfaces exposes the active-surface slot so transports can publish into it.
func (d *Dispatcher) Surfaces() *surface.Active {
	return d.deps.Surfaces
}

// Handle serves req. batchAnalyze reports progress through emit before it returns.
// Failures are reported in the response with a sanitized message, never returned.
func (d *Dispatcher) Handle(ctx context.Context, req Request, emit func(domain.BatchEvent)) Response {
	action := req.Name()
	switch action {
	case ActionAnalyzeURL:
		return d.analyzeURL(ctx, req)
	case ActionFetchContent:
		return d.fetchContent(ctx, req)
	case ActionBatchAnalyze:
		return d.batchAnalyze(ctx, req, emit)
	case ActionParseHTMLContent:
		return d.parseHTML(req)
	case ActionExtractTweetContent:
		return d.extractTweet(ctx, req)
	case ActionScanBookmarks:
		return d.scanBookmarks(ctx)
	default:
		return d.fail(action, fmt.Errorf("unknown action %q", action))
	}
}

func (d *Dispatcher) analyzeURL(ctx context.Context, req Request) Response {
	if d.deps.Analyzer == nil {
		return d.fail(ActionAnalyzeURL, errUnavailable)
	}
	rec, err := d.deps.Analyzer.AnalyzeURL(ctx, strings.TrimSpace(req.URL))
	if err != nil {
		return d.fail(ActionAnalyzeURL, err)
	}
	return Response{Success: true, Result: &rec}
}

func (d *Dispatcher) fetchContent(ctx context.Context, req Request) Response {
	if d.deps.Source == nil {
		return d.fail(ActionFetchContent, errUnavailable)
	}
	text, err := d.deps.Source.Fetch(ctx, strings.TrimSpace(req.URL))
	if err != nil {
		return d.fail(ActionFetchContent, err)
	}
	return contentResponse(text)
}

func (d *Dispatcher) batchAnalyze(ctx context.Context, req Request, emit func(domain.BatchEvent)) Response {
	if d.deps.Batch == nil {
		return d.fail(ActionBatchAnalyze, errUnavailable)
	}
	results := d.deps.Batch.RunBatch(ctx, req.URLs, emit)
	if results == nil {
		results = []domain.AnalysisRecord{}
	}
	return Response{Success: true, Results: results}
}

func (d *Dispatcher) parseHTML(req Request) Response {
	if d.deps.Extractor == nil {
		return d.fail(ActionParseHTMLContent, errUnavailable)
	}
	return contentResponse(d.deps.Extractor.FromMarkup(req.HTML))
}

func (d *Dispatcher) extractTweet(ctx context.Context, req Request) Response {
	if d.deps.Extractor == nil {
		return d.fail(ActionExtractTweetContent, errUnavailable)
	}
	surf, err := d.deps.Surfaces.Current()
	if err != nil {
		return d.fail(ActionExtractTweetContent, err)
	}
	text, err := d.deps.Extractor.FromSurface(ctx, surf, strings.TrimSpace(req.URL))
	if err != nil {
		return d.fail(ActionExtractTweetContent, err)
	}
	return contentResponse(text)
}

func (d *Dispatcher) scanBookmarks(ctx context.Context) Response {
	if d.deps.Scanner == nil {
		return d.fail(ActionScanBookmarks, errUnavailable)
	}
	surf, err := d.deps.Surfaces.Current()
	if err == nil {
		var urls []string
		urls, err = d.deps.Scanner.Scan(ctx, surf)
		if d.deps.Metrics != nil {
			d.deps.Metrics.ObserveScan(len(urls), err)
		}
		if err == nil {
			if urls == nil {
				urls = []string{}
			}
			return Response{Success: true, URLs: urls}
		}
	} else if d.deps.Metrics != nil {
		d.deps.Metrics.ObserveScan(0, err)
	}
	return d.fail(ActionScanBookmarks, err)
}

func (d *Dispatcher) fail(action string, err error) Response {
	if d.deps.Logger != nil {
		d.deps.Logger.Warn("request failed", "action", action, "error", err)
	}
	return Response{Success: false, Error: sanitize.Error(err)}
}

func contentResponse(text string) Response {
	return Response{Success: true, Content: &text}
}
