package moderation

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultRetryTries    = 3
	defaultRetryInterval = 500 * time.Millisecond
)

// Marks an error as not worth retrying (eg, the platform reports the message no longer exists).
func PermanentError(err error) error {
	return backoff.Permanent(err)
}

// runs a gateway call with bounded exponential backoff
func retryGateway[T any](ctx context.Context, eng *Engine, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultRetryInterval
	if eng.RetryInterval > 0 {
		bo.InitialInterval = eng.RetryInterval
	}
	tries := uint(defaultRetryTries)
	if eng.RetryTries > 0 {
		tries = eng.RetryTries
	}
	return backoff.Retry[T](ctx, op, backoff.WithBackOff(bo), backoff.WithMaxTries(tries))
}
