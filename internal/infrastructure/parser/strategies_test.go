package parser

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const timelineHTML = `
<html>
<head><title>Bookmarks / X</title></head>
<body>
  <div data-testid="cellInnerDiv">
    <article data-testid="tweet">
      <a href="/alice">Alice</a>
      <a href="/alice/status/111"><time datetime="2025-11-08T10:00:00Z">Nov 8</time></a>
      <div data-testid="tweetText">First post about Go generics</div>
      <a href="/alice/status/111/photo/1">photo</a>
    </article>
  </div>
  <div data-testid="cellInnerDiv">
    <article data-testid="tweet">
      <a href="https://twitter.com/bob/status/222?s=20"><time>Nov 7</time></a>
      <div data-testid="tweetText">Second post</div>
      <div data-testid="tweetText">quoted text</div>
    </article>
  </div>
  <div class="legacy">
    <a href="https://mobile.twitter.com/carol/status/333">old style link</a>
  </div>
  <a href="https://example.com/article">external</a>
  <a href="/settings">settings</a>
</body>
</html>`

func newDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func xBase(t *testing.T) *url.URL {
	t.Helper()
	base, err := url.Parse("https://x.com/i/bookmarks")
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}
	return base
}

func TestStatusLinkStrategy(t *testing.T) {
	t.Parallel()

	got, err := StatusLinkStrategy{}.Discover(newDoc(t, timelineHTML), xBase(t))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	want := []string{
		"https://x.com/alice/status/111",
		"https://x.com/alice/status/111",
		"https://twitter.com/bob/status/222",
		"https://twitter.com/carol/status/333",
	}
	assertEqualSlices(t, want, got)
}

func TestContainerStrategy(t *testing.T) {
	t.Parallel()

	got, err := ContainerStrategy{}.Discover(newDoc(t, timelineHTML), xBase(t))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	assertEqualSlices(t, []string{
		"https://x.com/alice/status/111",
		"https://twitter.com/bob/status/222",
	}, got)
}

func TestContainerStrategyPrefersTimestampLink(t *testing.T) {
	t.Parallel()

	markup := `<article data-testid="tweet">
	  <a href="/quoted/status/999">quoted post</a>
	  <a href="/author/status/5"><time>now</time></a>
	</article>`

	got, err := ContainerStrategy{}.Discover(newDoc(t, markup), xBase(t))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	assertEqualSlices(t, []string{"https://x.com/author/status/5"}, got)
}

func TestSemanticMarkerStrategy(t *testing.T) {
	t.Parallel()

	got, err := SemanticMarkerStrategy{}.Discover(newDoc(t, timelineHTML), xBase(t))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if len(got) == 0 {
		t.Fatalf("expected identifiers from semantic markers")
	}
	if got[0] != "https://x.com/alice/status/111" {
		t.Fatalf("unexpected first identifier: %s", got[0])
	}
	for _, id := range got {
		if strings.Contains(id, "carol") {
			t.Fatalf("legacy link is not next to a semantic marker: %s", id)
		}
	}
}

func TestAllLinksStrategy(t *testing.T) {
	t.Parallel()

	got, err := AllLinksStrategy{}.Discover(newDoc(t, timelineHTML), xBase(t))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	joined := strings.Join(got, " ")
	for _, want := range []string{
		"https://x.com/alice",
		"https://x.com/alice/status/111",
		"https://twitter.com/carol/status/333",
		"https://example.com/article",
		"https://x.com/settings",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %s in %v", want, got)
		}
	}
}

func TestNewRegistryOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry("")
	var names []string
	for _, s := range reg.Strategies() {
		names = append(names, s.Name())
	}
	assertEqualSlices(t, []string{"status-links", "post-containers", "semantic-markers", "all-links"}, names)
}

func assertEqualSlices(t *testing.T, want, got []string) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d items %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("item %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
