// Package surface models the rendered document that posts are discovered on.
package surface

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/identifier"
)

// Surface is a rendered document that may keep changing while it is read.
type Surface interface {
	// Snapshot parses the current rendering.
	Snapshot(ctx context.Context) (*goquery.Document, error)
	// Base resolves relative links found in the rendering.
	Base() *url.URL
	// WaitForMutation blocks until the rendering changes, the timeout fires
	// or ctx is done. It reports whether a change happened.
	WaitForMutation(ctx context.Context, timeout time.Duration) (bool, error)
	// Scroll asks the surface to load more content.
	Scroll(ctx context.Context) error
}

// Static is an immutable surface parsed once from markup.
type Static struct {
	doc  *goquery.Document
	base *url.URL
}

var _ Surface = (*Static)(nil)

// NewStatic parses markup; base defaults to identifier.DefaultBase.
func NewStatic(markup string, base *url.URL) (*Static, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	if base == nil {
		base = identifier.DefaultBase
	}
	return &Static{doc: doc, base: base}, nil
}

// Snapshot returns the parsed document.
func (s *Static) Snapshot(ctx context.Context) (*goquery.Document, error) {
	return s.doc, ctx.Err()
}

// Base returns the link resolution base.
func (s *Static) Base() *url.URL {
	return s.base
}

// WaitForMutation never observes a change.
func (s *Static) WaitForMutation(ctx context.Context, _ time.Duration) (bool, error) {
	return false, ctx.Err()
}

// Scroll is a no-op.
func (s *Static) Scroll(ctx context.Context) error {
	return ctx.Err()
}

// ScrollFunc loads more content into a Live surface.
type ScrollFunc func(ctx context.Context, l *Live) error

// Live is a mutable surface: collaborators render markup into it and readers
// can wait for the next change.
type Live struct {
	mu       sync.Mutex
	parts    []string
	base     *url.URL
	changed  chan struct{}
	onScroll ScrollFunc
}

var _ Surface = (*Live)(nil)

// NewLive builds an empty surface. onScroll may be nil.
func NewLive(base *url.URL, onScroll ScrollFunc) *Live {
	if base == nil {
		base = identifier.DefaultBase
	}
	return &Live{
		base:     base,
		changed:  make(chan struct{}),
		onScroll: onScroll,
	}
}

// Render replaces the whole rendering.
func (l *Live) Render(markup string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parts = []string{markup}
	l.notifyLocked()
}

// Append adds a fragment after the current rendering, the way lazy loading
// grows a timeline.
func (l *Live) Append(fragment string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parts = append(l.parts, fragment)
	l.notifyLocked()
}

// SetBase changes the link resolution base.
func (l *Live) SetBase(base *url.URL) {
	if base == nil {
		return
	}
	l.mu.Lock()
	l.base = base
	l.mu.Unlock()
}

func (l *Live) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// Snapshot parses the current rendering.
func (l *Live) Snapshot(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	markup := strings.Join(l.parts, "\n")
	l.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSurfaceAccess, err)
	}
	return doc, nil
}

// Base returns the link resolution base.
func (l *Live) Base() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base
}

// WaitForMutation waits for the next Render or Append.
func (l *Live) WaitForMutation(ctx context.Context, timeout time.Duration) (bool, error) {
	l.mu.Lock()
	ch := l.changed
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Scroll runs the configured loader, if any.
func (l *Live) Scroll(ctx context.Context) error {
	if l.onScroll == nil {
		return ctx.Err()
	}
	return l.onScroll(ctx, l)
}

// Pages returns a ScrollFunc that appends one fragment per scroll until the
// fragments run out.
func Pages(fragments ...string) ScrollFunc {
	var (
		mu   sync.Mutex
		next int
	)
	return func(ctx context.Context, l *Live) error {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(fragments) {
			return ctx.Err()
		}
		l.Append(fragments[next])
		next++
		return ctx.Err()
	}
}

// Active holds the surface the user is currently looking at, if any.
type Active struct {
	mu      sync.RWMutex
	current Surface
}

// Set makes s the active surface.
func (a *Active) Set(s Surface) {
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()
}

// Clear forgets the active surface.
func (a *Active) Clear() {
	a.Set(nil)
}

// Current returns the active surface or domain.ErrNoSurface.
func (a *Active) Current() (Surface, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil, domain.ErrNoSurface
	}
	return a.current, nil
}
