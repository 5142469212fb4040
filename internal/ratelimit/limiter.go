// Package ratelimit spaces out calls that share a key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultKey groups calls whose caller did not supply a more specific key.
const DefaultKey = "default"

// Limiter enforces a minimum interval between calls sharing a key.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// New builds a limiter; a non-positive interval disables throttling.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Interval reports the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Throttle blocks until a call for key may start, then records it.
func (l *Limiter) Throttle(ctx context.Context, key string) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}
	if key == "" {
		key = DefaultKey
	}
	if err := l.limiterFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("throttle %s: %w", key, err)
	}
	return nil
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Every(l.interval), 1)
	l.limiters[key] = limiter
	return limiter
}
