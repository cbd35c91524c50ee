package aggregates

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"

	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
)

// retryWrite repeats attempt while it fails with a retryable code, up to
// deps.MaxAttempts. Every other outcome ends the loop immediately. Each retry
// is reported through Hooks.IncRetry.
func retryWrite(ctx context.Context, deps BaseDeps, op string, attempt func() error) error {
	if deps.MaxAttempts <= 1 {
		return attempt()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = deps.RetryBaseDelay
	bo.MaxInterval = 20 * deps.RetryBaseDelay

	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		err := attempt()
		if err == nil {
			return struct{}{}, nil
		}
		if !domainagg.IsCode(err, domainagg.CodeRetryable) {
			return struct{}{}, backoff.Permanent(err)
		}
		if tries < deps.MaxAttempts {
			deps.Hooks.IncRetry(op)
			deps.Log.Warn("Retrying aggregate write", "op", op, "attempt", tries, "error", err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(deps.MaxAttempts)),
	)
	// The try limit is checked before permanent errors are unwrapped.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
