package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quantdesk/tradedesk/pkg/apperrors"
	"github.com/quantdesk/tradedesk/pkg/config"
)

// withRetry retries fn on apperrors.Upstream/Timeout with exponential
// backoff and full jitter, up to cfg.MaxAttempts total attempts.
// Grounded on the teacher's pkg/mcp/recovery.go jittered-retry constants,
// generalized to the Gateway's own error kinds and implemented with
// cenkalti/backoff instead of a hand-rolled sleep loop.
func withRetry(ctx context.Context, cfg config.RetryConfig, fn func() (any, error)) (any, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = jitterFloor(cfg.BaseDelay)
	policy.MaxInterval = cfg.MaxDelay
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 1.0 // full jitter
	policy.MaxElapsedTime = 0        // bounded by attempt count instead

	bo := backoff.WithContext(policy, ctx)

	var result any
	attempt := 0
	operation := func() error {
		attempt++
		v, err := fn()
		if err == nil {
			result = v
			return nil
		}
		if attempt >= cfg.MaxAttempts || !apperrors.Retryable(apperrors.KindOf(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return result, nil
}

// jitterFloor guards against a zero BaseDelay collapsing every retry to
// an immediate retry storm.
func jitterFloor(d time.Duration) time.Duration {
	if d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}
