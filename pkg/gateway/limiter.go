package gateway

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/config"
)

// limiters holds one token bucket per provider kind, built from
// config.GatewayConfig.RateLimits (§4.1).
type limiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	cfg     map[string]config.TokenBucketConfig
}

func newLimiters(cfg map[string]config.TokenBucketConfig) *limiters {
	return &limiters{buckets: make(map[string]*rate.Limiter), cfg: cfg}
}

func (l *limiters) bucket(kind string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[kind]; ok {
		return b
	}
	tb := l.cfg[kind]
	if tb.Burst <= 0 {
		tb.Burst = 1
	}
	if tb.RefillPerSecond <= 0 {
		tb.RefillPerSecond = 1
	}
	b := rate.NewLimiter(rate.Limit(tb.RefillPerSecond), tb.Burst)
	l.buckets[kind] = b
	return b
}

// wait blocks until a token is available or the call deadline is hit,
// returning apperrors.RateLimited on exhaustion rather than blocking
// forever (§4.1: "blocks up to a caller-specified budget").
func (l *limiters) wait(ctx context.Context, kind string) error {
	b := l.bucket(kind)
	if err := b.Wait(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindRateLimited, "rate limit budget exhausted for "+kind, err)
	}
	return nil
}
