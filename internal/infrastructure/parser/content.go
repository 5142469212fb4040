package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/identifier"
	"BookmarkScanner/internal/ports"
	"BookmarkScanner/internal/sanitize"
	"BookmarkScanner/internal/scanner"
	"BookmarkScanner/internal/surface"
)

// NoContentPlaceholder is returned when a surface holds no text for a post.
const NoContentPlaceholder = "No content found"

// fallbackSelectors are tried in order when a document has no post text.
var fallbackSelectors = []string{
	`meta[property="og:title"]`,
	`meta[property="og:description"]`,
	`meta[name="description"]`,
	"h1",
	"h2",
	".tweet-text",
}

// ContentExtractor recovers post text from markup or from a live surface.
type ContentExtractor struct {
	postMarker string
	logger     *slog.Logger
}

// NewContentExtractor builds an extractor; an empty marker means scanner.DefaultPostMarker.
func NewContentExtractor(postMarker string, logger *slog.Logger) *ContentExtractor {
	if postMarker == "" {
		postMarker = scanner.DefaultPostMarker
	}
	return &ContentExtractor{postMarker: postMarker, logger: logger}
}

// FromMarkup returns the best textual summary of a document: post text, then
// page metadata and headings, then the document title.
func (e *ContentExtractor) FromMarkup(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.debug("parse markup failed", "error", err)
		return ""
	}
	return sanitize.Content(DocumentText(doc))
}

// DocumentText applies the markup fallback chain without sanitizing.
func DocumentText(doc *goquery.Document) string {
	if parts := collectText(doc.Find(postTextSelector)); len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	var parts []string
	for _, sel := range fallbackSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := s.Text()
			if goquery.NodeName(s) == "meta" {
				text, _ = s.Attr("content")
			}
			if text = strings.TrimSpace(text); text != "" {
				parts = append(parts, text)
			}
		})
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

// FromSurface finds the text of the post identified by target. Lookup order:
// the post container linking to target, then any link to target and its
// nearest text-bearing ancestor, then the first post text on the surface.
// Absence yields NoContentPlaceholder, never an error.
func (e *ContentExtractor) FromSurface(ctx context.Context, surf surface.Surface, target string) (string, error) {
	doc, base, targetID, err := e.open(ctx, surf, target)
	if err != nil {
		return "", err
	}

	if text := e.find(doc, base, targetID, target); text != "" {
		return text, nil
	}

	if first := doc.Find(postTextSelector).First(); first.Length() > 0 {
		if text := strings.TrimSpace(first.Text()); text != "" {
			e.debug("falling back to first post text", "target", target)
			return sanitize.Content(text), nil
		}
	}

	e.debug("no content found", "target", target)
	return NoContentPlaceholder, nil
}

// PostText is FromSurface without the page-wide fallbacks: it only returns
// text rendered for target itself, or domain.ErrNotFound.
func (e *ContentExtractor) PostText(ctx context.Context, surf surface.Surface, target string) (string, error) {
	doc, base, targetID, err := e.open(ctx, surf, target)
	if err != nil {
		return "", err
	}
	if text := e.find(doc, base, targetID, target); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("post %s on surface: %w", targetID, domain.ErrNotFound)
}

func (e *ContentExtractor) open(ctx context.Context, surf surface.Surface, target string) (*goquery.Document, *url.URL, string, error) {
	if surf == nil {
		return nil, nil, "", domain.ErrNoSurface
	}
	targetID, ok := identifier.StatusID(target)
	if !ok {
		return nil, nil, "", fmt.Errorf("%w: %s", domain.ErrInvalidIdentifier, sanitize.Display(target))
	}

	doc, err := surf.Snapshot(ctx)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %v", domain.ErrSurfaceAccess, err)
	}
	return doc, surf.Base(), targetID, nil
}

// find looks for targetID in post containers first, then through any status
// link pointing at it.
func (e *ContentExtractor) find(doc *goquery.Document, base *url.URL, targetID, target string) string {
	matches := func(_ int, a *goquery.Selection) bool {
		return linkStatusID(a, base) == targetID
	}

	var text string
	doc.Find(e.postMarker).EachWithBreak(func(_ int, post *goquery.Selection) bool {
		if post.Find(statusLinkSelector).FilterFunction(matches).Length() == 0 {
			return true
		}
		text = strings.Join(collectText(post.Find(postTextSelector)), "\n")
		return text == ""
	})
	if text != "" {
		e.debug("content found in post container", "target", target)
		return sanitize.Content(text)
	}

	doc.Find(statusLinkSelector).FilterFunction(matches).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text = nearestText(a, targetID, base)
		return text == ""
	})
	if text != "" {
		e.debug("content found via status link", "target", target)
		return sanitize.Content(text)
	}
	return ""
}

// SurfaceSource serves post text from the active surface, for posts that are
// rendered on it.
type SurfaceSource struct {
	surfaces  *surface.Active
	extractor *ContentExtractor
}

var _ ports.ContentSource = (*SurfaceSource)(nil)

// NewSurfaceSource reads through extractor from whatever surface is active.
func NewSurfaceSource(surfaces *surface.Active, extractor *ContentExtractor) *SurfaceSource {
	return &SurfaceSource{surfaces: surfaces, extractor: extractor}
}

// Fetch returns the text rendered for rawURL on the active surface.
func (s *SurfaceSource) Fetch(ctx context.Context, rawURL string) (string, error) {
	if s.surfaces == nil || s.extractor == nil {
		return "", domain.ErrNoSurface
	}
	surf, err := s.surfaces.Current()
	if err != nil {
		return "", err
	}
	return s.extractor.PostText(ctx, surf, rawURL)
}

// nearestText walks up from a status link and returns the post text of the
// closest ancestor that has some, stopping once an ancestor also links to a
// different post.
func nearestText(a *goquery.Selection, targetID string, base *url.URL) string {
	for p := a.Parent(); p.Length() > 0; p = p.Parent() {
		foreign := p.Find(statusLinkSelector).FilterFunction(func(_ int, l *goquery.Selection) bool {
			id := linkStatusID(l, base)
			return id != "" && id != targetID
		})
		if foreign.Length() > 0 {
			return ""
		}
		if parts := collectText(p.Find(postTextSelector)); len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return ""
}

func linkStatusID(a *goquery.Selection, base *url.URL) string {
	canonical, ok := canonicalHref(a, base)
	if !ok {
		return ""
	}
	id, _ := identifier.StatusID(canonical)
	return id
}

func collectText(sel *goquery.Selection) []string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return parts
}

func (e *ContentExtractor) debug(msg string, args ...interface{}) {
	if e != nil && e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
