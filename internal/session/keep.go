package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultActivateTimeout = 10 * time.Second

// Activator is implemented by Sender and Receiver.
type Activator interface {
	Activate(ctx context.Context) error
	Close() error
}

// Keep activates a with fibonacci backoff, each attempt bounded by timeout,
// then holds it open until ctx ends and closes it. It is meant to run on the
// goroutine manager for the lifetime of the app. Losing a subscription after
// that is handled by the sender and receiver themselves.
func Keep(ctx context.Context, a Activator, timeout time.Duration) error {
	if err := activateWithBackoff(ctx, timeout, a.Activate); err != nil && ctx.Err() == nil {
		_ = a.Close()
		return err
	}

	<-ctx.Done()
	return a.Close()
}

// activateWithBackoff calls activate until it succeeds or ctx ends.
func activateWithBackoff(ctx context.Context, timeout time.Duration, activate func(context.Context) error) error {
	if timeout <= 0 {
		timeout = defaultActivateTimeout
	}

	b := retry.WithCappedDuration(5*time.Second, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		actCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := activate(actCtx); err != nil {
			slog.WarnContext(ctx, "session activation failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
