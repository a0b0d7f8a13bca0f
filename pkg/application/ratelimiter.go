package application

import (
	"context"
	"fmt"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/domain/repository"
	"github.com/WangYihang/netcheck/pkg/domain/service"
)

// FixedWindowLimiter implements service.RateLimiter.
// Denied attempts are still counted, so a client that keeps sending during a
// full window stays denied until the window rolls over.
type FixedWindowLimiter struct {
	store       repository.RateLimitStore
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// RateLimitConfig holds the limiter policy
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// NewFixedWindowLimiter creates a limiter backed by store
func NewFixedWindowLimiter(config RateLimitConfig, store repository.RateLimitStore) *FixedWindowLimiter {
	if config.MaxRequests <= 0 {
		config.MaxRequests = 12
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &FixedWindowLimiter{
		store:       store,
		maxRequests: config.MaxRequests,
		window:      config.Window,
		now:         time.Now,
	}
}

// Admit implements service.RateLimiter. Store failures deny the request.
func (l *FixedWindowLimiter) Admit(ctx context.Context, clientKey string) (service.Decision, error) {
	now := l.now()

	record, err := l.store.Increment(ctx, clientKey, now, l.window)
	if err != nil {
		return service.Decision{}, fmt.Errorf("%w: %v", entity.ErrRateLimiterUnavailable, err)
	}

	if record.Count > l.maxRequests {
		retryAfter := record.WindowStart.Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return service.Decision{Allowed: false, RetryAfter: retryAfter, Count: record.Count}, nil
	}

	return service.Decision{Allowed: true, Count: record.Count}, nil
}
