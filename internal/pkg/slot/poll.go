package slot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// objectStore is the subset of an object store a polled slot needs.
type objectStore interface {
	// version returns an opaque version tag of the object, or ErrEmpty.
	version(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// pollWatch emits the object whenever its version tag changes. Transient
// errors are retried with fibonacci backoff.
func pollWatch(ctx context.Context, store objectStore, key string, handler Handler, wo watchOptions) error {
	b := retry.WithCappedDuration(5*time.Second, retry.NewFibonacci(200*time.Millisecond))

	stat := func(ctx context.Context) (string, error) {
		var tag string
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			v, err := store.version(ctx, key)
			if errors.Is(err, ErrEmpty) {
				tag = ""
				return nil
			}
			if err != nil {
				slog.WarnContext(ctx, "slot poll failed", "key", key, "error", err)
				return retry.RetryableError(err)
			}
			tag = v
			return nil
		})
		return tag, err
	}

	last, err := stat(ctx)
	if err != nil {
		return err
	}
	wo.markReady()

	ticker := time.NewTicker(wo.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		tag, err := stat(ctx)
		if err != nil {
			return err
		}
		if tag == "" || tag == last {
			continue
		}

		value, err := store.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "slot poll read failed", "key", key, "error", err)
			continue
		}

		last = tag
		handler(ctx, value)
	}
}
