package webhook

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy makes retry semantics explicit and independently testable:
// attempt cap, exponential delay shape, and a predicate deciding which
// errors are worth retrying.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Retryable   func(error) bool
}

// Do runs op until it succeeds, a non-retryable error occurs, the attempt
// cap is reached, or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // the attempt cap is the only stop condition

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	retries := uint64(0)
	if p.MaxAttempts > 1 {
		retries = uint64(p.MaxAttempts - 1)
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx))
}
