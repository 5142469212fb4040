package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"BookmarkScanner/internal/identifier"
	"BookmarkScanner/internal/scanner"
)

const (
	statusLinkSelector = `a[href*="/status/"]`
	postTextSelector   = `[data-testid="tweetText"]`
	cellSelector       = `[data-testid="cellInnerDiv"]`
)

// StatusLinkStrategy collects every anchor that points at a status path.
type StatusLinkStrategy struct{}

var _ scanner.Strategy = StatusLinkStrategy{}

// Name identifies the strategy inside the registry.
func (StatusLinkStrategy) Name() string { return "status-links" }

// Discover returns canonical status links in document order.
func (StatusLinkStrategy) Discover(doc *goquery.Document, base *url.URL) ([]string, error) {
	var out []string
	doc.Find(statusLinkSelector).Each(func(_ int, a *goquery.Selection) {
		if id, ok := canonicalHref(a, base); ok {
			out = append(out, id)
		}
	})
	return out, nil
}

// ContainerStrategy reads the permalink of each element that wraps one post.
// The permalink is the status link around the post's timestamp when present.
type ContainerStrategy struct {
	Marker string
}

var _ scanner.Strategy = ContainerStrategy{}

// Name identifies the strategy inside the registry.
func (ContainerStrategy) Name() string { return "post-containers" }

// Discover returns one identifier per post container.
func (c ContainerStrategy) Discover(doc *goquery.Document, base *url.URL) ([]string, error) {
	marker := c.Marker
	if marker == "" {
		marker = scanner.DefaultPostMarker
	}

	var out []string
	doc.Find(marker).Each(func(_ int, post *goquery.Selection) {
		link := post.Find(statusLinkSelector + ":has(time)").First()
		if link.Length() == 0 {
			link = post.Find(statusLinkSelector).First()
		}
		if id, ok := canonicalHref(link, base); ok {
			out = append(out, id)
		}
	})
	return out, nil
}

// SemanticMarkerStrategy follows a few markers that sit next to a post's
// permalink: timestamps, post text and timeline cells.
type SemanticMarkerStrategy struct{}

var _ scanner.Strategy = SemanticMarkerStrategy{}

// Name identifies the strategy inside the registry.
func (SemanticMarkerStrategy) Name() string { return "semantic-markers" }

// Discover returns identifiers reachable from semantic markers.
func (SemanticMarkerStrategy) Discover(doc *goquery.Document, base *url.URL) ([]string, error) {
	var out []string
	add := func(a *goquery.Selection) {
		if id, ok := canonicalHref(a, base); ok {
			out = append(out, id)
		}
	}

	doc.Find("time").Each(func(_ int, t *goquery.Selection) {
		add(t.Closest("a"))
	})
	doc.Find(postTextSelector).Each(func(_ int, text *goquery.Selection) {
		holder := text.Closest("article, " + cellSelector)
		add(holder.Find(statusLinkSelector).First())
	})
	doc.Find(cellSelector).Each(func(_ int, cell *goquery.Selection) {
		add(cell.Find(statusLinkSelector).First())
	})
	return out, nil
}

// AllLinksStrategy is the broad fallback: every link on the page, resolved.
// Non-status links are left for the validator to reject.
type AllLinksStrategy struct{}

var _ scanner.Strategy = AllLinksStrategy{}

// Name identifies the strategy inside the registry.
func (AllLinksStrategy) Name() string { return "all-links" }

// Discover returns every resolvable href.
func (AllLinksStrategy) Discover(doc *goquery.Document, base *url.URL) ([]string, error) {
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if id, ok := canonicalHref(a, base); ok {
			out = append(out, id)
			return
		}
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		out = append(out, ref.String())
	})
	return out, nil
}

// DefaultStrategies lists the discovery strategies in priority order.
func DefaultStrategies(postMarker string) []scanner.Strategy {
	return []scanner.Strategy{
		StatusLinkStrategy{},
		ContainerStrategy{Marker: postMarker},
		SemanticMarkerStrategy{},
		AllLinksStrategy{},
	}
}

// NewRegistry registers DefaultStrategies.
func NewRegistry(postMarker string) *scanner.Registry {
	reg := scanner.NewRegistry()
	for _, s := range DefaultStrategies(postMarker) {
		reg.Register(s)
	}
	return reg
}

func canonicalHref(a *goquery.Selection, base *url.URL) (string, bool) {
	if a.Length() == 0 {
		return "", false
	}
	href, ok := a.Attr("href")
	if !ok {
		return "", false
	}
	return identifier.Canonical(href, base)
}
