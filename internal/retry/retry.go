// Package retry re-runs failing operations with exponential backoff,
// tracking attempts per key so callers can inspect in-flight state.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"BookmarkScanner/internal/domain"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second

	maxBackoff = 5 * time.Minute
)

// slot serialises the calls sharing one key. attempts is only written by the
// caller holding sem.
type slot struct {
	sem      chan struct{}
	refs     int
	attempts int
}

// Orchestrator owns the attempt counters for every key in flight.
type Orchestrator struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// New returns an orchestrator; zero values fall back to the defaults.
func New(maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Orchestrator {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay < 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Orchestrator{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
		slots:      make(map[string]*slot),
	}
}

// Attempts reports the failure count recorded for key by the call currently
// retrying it.
func (o *Orchestrator) Attempts(key string) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.slots[key]
	if !ok || s.attempts == 0 {
		return 0, false
	}
	return s.attempts, true
}

// MaxRetries is the number of attempts made before giving up.
func (o *Orchestrator) MaxRetries() int {
	return o.maxRetries
}

// newBackOff yields BaseDelay*2, BaseDelay*4, ... without jitter.
func (o *Orchestrator) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * o.baseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = maxBackoff
	bo.Reset()
	return bo
}

// Do runs op until it succeeds or has failed MaxRetries times. Calls sharing
// a key run one after another, each with its own budget. The key's state is
// cleared on success, on exhaustion and on cancellation.
func Do[T any](ctx context.Context, o *Orchestrator, key string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	s, err := o.acquire(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("retry %s cancelled: %w", key, err)
	}
	defer o.release(key, s)

	bo := o.newBackOff()
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		attempts := o.fail(s)
		if attempts >= o.maxRetries {
			o.warn("retries exhausted", "key", key, "attempts", attempts, "error", err)
			return zero, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetryExhausted, attempts, err)
		}

		delay := bo.NextBackOff()
		o.debug("retry backoff wait", "key", key, "attempt", attempts, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry %s cancelled: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) acquire(ctx context.Context, key string) (*slot, error) {
	o.mu.Lock()
	s, ok := o.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		o.slots[key] = s
	}
	s.refs++
	o.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
		return s, nil
	case <-ctx.Done():
		o.drop(key, s)
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) release(key string, s *slot) {
	o.mu.Lock()
	s.attempts = 0
	o.mu.Unlock()
	<-s.sem
	o.drop(key, s)
}

func (o *Orchestrator) drop(key string, s *slot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(o.slots, key)
	}
}

func (o *Orchestrator) fail(s *slot) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	s.attempts++
	return s.attempts
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
