package migrate

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/open-feature/flagmigrate/pkg/model"
)

const (
	DefaultMaxRetries    = 1
	DefaultRetryInterval = 500 * time.Millisecond
	DefaultCallTimeout   = 30 * time.Second

	retryMaxElapsed = 2 * time.Minute
)

// RetryPolicy bounds every call made against the flag service. Rate limited
// and timed out calls are retried up to MaxRetries times with exponential
// backoff; any other failure is returned straight away.
type RetryPolicy struct {
	MaxRetries  int
	Interval    time.Duration
	CallTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  DefaultMaxRetries,
		Interval:    DefaultRetryInterval,
		CallTimeout: DefaultCallTimeout,
	}
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; always build a fresh one.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Interval
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = DefaultRetryInterval
	}
	bo.MaxElapsedTime = retryMaxElapsed

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
}

type caller struct {
	policy RetryPolicy
}

// do runs op with a per-call timeout, retrying transient failures.
func (c caller) do(ctx context.Context, op func(ctx context.Context) error) error {
	timeout := c.policy.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := op(callCtx)
		if err == nil {
			return nil
		}
		if model.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, c.policy.newBackOff(ctx))
}
