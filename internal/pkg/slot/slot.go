// Package slot implements a single-value, last-write-wins register per key.
//
// A slot holds only the latest value written to it. Writers never queue and
// watchers observe the newest value, possibly skipping intermediate ones.
package slot

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrEmpty is returned by Get when nothing was ever written to the key.
	ErrEmpty = errors.New("slot: empty")
	// ErrKeyRequired is returned for an empty key.
	ErrKeyRequired = errors.New("slot: key is required")
	// ErrHandlerRequired is returned when Watch is called with a nil handler.
	ErrHandlerRequired = errors.New("slot: handler is required")
)

// Slot is a durable last-write-wins register.
type Slot interface {
	io.Closer

	// Put overwrites the value stored at key.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value stored at key or ErrEmpty.
	Get(ctx context.Context, key string) ([]byte, error)

	// Watch calls handler for every value written to key after the watch
	// became ready. It blocks until ctx is done.
	Watch(ctx context.Context, key string, handler Handler, opts ...WatchOption) error
}

// Handler receives the new value of a watched key.
type Handler func(ctx context.Context, value []byte)

type watchOptions struct {
	ready        func()
	pollInterval time.Duration
}

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

const defaultPollInterval = time.Second

func newWatchOptions(opts ...WatchOption) watchOptions {
	wo := watchOptions{pollInterval: defaultPollInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(&wo)
		}
	}
	if wo.pollInterval <= 0 {
		wo.pollInterval = defaultPollInterval
	}
	return wo
}

func (o watchOptions) markReady() {
	if o.ready != nil {
		o.ready()
	}
}

// WithReady registers fn to be called once the watch is established.
func WithReady(fn func()) WatchOption {
	return func(o *watchOptions) { o.ready = fn }
}

// WithPollInterval sets how often object store drivers check for a new version.
func WithPollInterval(d time.Duration) WatchOption {
	return func(o *watchOptions) { o.pollInterval = d }
}
