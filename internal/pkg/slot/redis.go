package slot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const defaultNotifyPrefix = "slot:notify:"

// RedisOptions configures the redis slot.
type RedisOptions struct {
	// NotifyPrefix prefixes the pub/sub channel announcing new values.
	NotifyPrefix string
	// TTL expires the stored value; zero keeps it forever.
	TTL time.Duration
}

// Redis stores each slot as a string key and announces writes on a pub/sub
// channel carrying the new value.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedis wraps an existing client. The client is owned by the caller.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	if opts.NotifyPrefix == "" {
		opts.NotifyPrefix = defaultNotifyPrefix
	}
	return &Redis{client: client, opts: opts}
}

func (r *Redis) Close() error { return nil }

func (r *Redis) channel(key string) string {
	return r.opts.NotifyPrefix + key
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrKeyRequired
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, r.opts.TTL)
		pipe.Publish(ctx, r.channel(key), value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("slot: redis put: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("slot: redis get: %w", err)
	}
	return v, nil
}

// Watch subscribes to the notify channel and resubscribes with fibonacci
// backoff when the subscription breaks. After a resubscribe the key is read
// again, so a write published while nobody listened still reaches handler.
func (r *Redis) Watch(ctx context.Context, key string, handler Handler, opts ...WatchOption) error {
	if key == "" {
		return ErrKeyRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	wo := newWatchOptions(opts...)
	var readyOnce sync.Once
	ready := func() { readyOnce.Do(wo.markReady) }

	b := retry.WithCappedDuration(5*time.Second, retry.NewFibonacci(200*time.Millisecond))

	resync := false
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := r.listen(ctx, key, handler, ready, resync)
		if ctx.Err() != nil {
			return nil
		}
		resync = true
		slog.WarnContext(ctx, "slot redis watch interrupted", "key", key, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return err
	}

	return ctx.Err()
}

// listen holds one subscription until it fails or ctx ends. With resync set
// the current value is handed to handler once the subscription is up.
func (r *Redis) listen(ctx context.Context, key string, handler Handler, ready func(), resync bool) error {
	ps := r.client.Subscribe(ctx, r.channel(key))
	defer ps.Close()

	// Receive does not watch ctx; closing the subscription unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	defer stop()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	ready()

	if resync {
		value, err := r.Get(ctx, key)
		switch {
		case err == nil:
			handler(ctx, value)
		case !errors.Is(err, ErrEmpty):
			return err
		}
	}

	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			return err
		}
		if m, ok := msg.(*redis.Message); ok {
			handler(ctx, []byte(m.Payload))
		}
	}
}
