package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/identifier"
	"BookmarkScanner/internal/surface"
)

// DefaultPostMarker matches the element that wraps a single rendered post.
const DefaultPostMarker = `article[data-testid="tweet"]`

// Strategy captures a single discovery technique (status links, containers, etc.).
type Strategy interface {
	Name() string
	Discover(doc *goquery.Document, base *url.URL) ([]string, error)
}

// Registry keeps strategies in registration order, which is their priority.
type Registry struct {
	order      []string
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds a strategy or replaces one with the same name in place.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	name := strategy.Name()
	if _, ok := r.strategies[name]; !ok {
		r.order = append(r.order, name)
	}
	r.strategies[name] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("strategy %s is not registered", name)
}

// Strategies lists registered strategies in priority order.
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.strategies[name])
	}
	return out
}

// Config bounds how long and how far a scan may go.
type Config struct {
	MaxIdentifiers  int
	ContentWait     time.Duration
	MaxScrollCycles int
	ScrollWait      time.Duration
	PostMarker      string
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{
		MaxIdentifiers:  100,
		ContentWait:     5 * time.Second,
		MaxScrollCycles: 10,
		ScrollWait:      2 * time.Second,
		PostMarker:      DefaultPostMarker,
	}
}

// Scanner runs every registered strategy over a surface and merges results.
type Scanner struct {
	registry *Registry
	cfg      Config
	logger   *slog.Logger
	busy     atomic.Bool
}

// New wires a registry with scan bounds. Zero config fields take defaults.
func New(reg *Registry, cfg Config, logger *slog.Logger) *Scanner {
	def := DefaultConfig()
	if cfg.MaxIdentifiers <= 0 {
		cfg.MaxIdentifiers = def.MaxIdentifiers
	}
	if cfg.MaxScrollCycles < 0 {
		cfg.MaxScrollCycles = 0
	}
	if cfg.PostMarker == "" {
		cfg.PostMarker = def.PostMarker
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return &Scanner{registry: reg, cfg: cfg, logger: logger}
}

// Scan discovers post identifiers on surf: deduplicated in first-seen order,
// validated and capped. A concurrent call fails with domain.ErrScanInProgress.
func (s *Scanner) Scan(ctx context.Context, surf surface.Surface) ([]string, error) {
	if surf == nil {
		return nil, domain.ErrNoSurface
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrScanInProgress
	}
	defer s.busy.Store(false)

	if err := s.awaitPosts(ctx, surf); err != nil {
		return nil, err
	}
	if err := s.loadMore(ctx, surf); err != nil {
		return nil, err
	}

	doc, err := surf.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot surface: %w", err)
	}

	base := surf.Base()
	var candidates []string
	for _, strategy := range s.registry.Strategies() {
		found, err := discover(strategy, doc, base)
		if err != nil {
			s.warn("strategy failed", "strategy", strategy.Name(), "error", err)
			continue
		}
		s.debug("strategy produced candidates", "strategy", strategy.Name(), "count", len(found))
		candidates = append(candidates, found...)
	}

	ids := identifier.Dedupe(candidates)
	if len(ids) > s.cfg.MaxIdentifiers {
		ids = ids[:s.cfg.MaxIdentifiers]
	}
	s.debug("scan done", "candidates", len(candidates), "identifiers", len(ids))
	return ids, nil
}

func discover(strategy Strategy, doc *goquery.Document, base *url.URL) (found []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
	}()
	return strategy.Discover(doc, base)
}

// awaitPosts waits, bounded by ContentWait, until at least one post marker
// is rendered.
func (s *Scanner) awaitPosts(ctx context.Context, surf surface.Surface) error {
	count, err := s.countPosts(ctx, surf)
	if err != nil || count > 0 {
		return err
	}

	deadline := time.Now().Add(s.cfg.ContentWait)
	for count == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.debug("no posts rendered before timeout", "wait", s.cfg.ContentWait)
			return nil
		}
		changed, err := surf.WaitForMutation(ctx, remaining)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if count, err = s.countPosts(ctx, surf); err != nil {
			return err
		}
	}
	return nil
}

// loadMore scrolls to trigger lazy loading, stopping after MaxScrollCycles
// or as soon as a cycle renders no new posts.
func (s *Scanner) loadMore(ctx context.Context, surf surface.Surface) error {
	prev, err := s.countPosts(ctx, surf)
	if err != nil {
		return err
	}

	for cycle := 0; cycle < s.cfg.MaxScrollCycles; cycle++ {
		if err := surf.Scroll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.warn("scroll failed", "cycle", cycle, "error", err)
			return nil
		}

		count, err := s.countPosts(ctx, surf)
		if err != nil {
			return err
		}
		if count <= prev {
			changed, err := surf.WaitForMutation(ctx, s.cfg.ScrollWait)
			if err != nil {
				return err
			}
			if changed {
				if count, err = s.countPosts(ctx, surf); err != nil {
					return err
				}
			}
		}
		if count <= prev {
			s.debug("scroll produced no new posts", "cycle", cycle, "posts", count)
			return nil
		}
		prev = count
	}
	return nil
}

func (s *Scanner) countPosts(ctx context.Context, surf surface.Surface) (int, error) {
	doc, err := surf.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot surface: %w", err)
	}
	return doc.Find(s.cfg.PostMarker).Length(), nil
}

func (s *Scanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Scanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
