package slot

import (
	"context"
	"sync"
)

// Memory is an in-process Slot used by the single-process role and tests.
type Memory struct {
	mu       sync.Mutex
	values   map[string][]byte
	watchers map[string]map[chan []byte]struct{}
}

// NewMemory constructs an empty in-process slot store.
func NewMemory() *Memory {
	return &Memory{
		values:   map[string][]byte{},
		watchers: map[string]map[chan []byte]struct{}{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrKeyRequired
	}

	stored := append([]byte(nil), value...)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = stored
	for ch := range m.watchers[key] {
		replaceLatest(ch, stored)
	}

	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrKeyRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrEmpty
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Watch(ctx context.Context, key string, handler Handler, opts ...WatchOption) error {
	if key == "" {
		return ErrKeyRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	wo := newWatchOptions(opts...)
	ch := make(chan []byte, 1)

	m.mu.Lock()
	if m.watchers[key] == nil {
		m.watchers[key] = map[chan []byte]struct{}{}
	}
	m.watchers[key][ch] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.watchers[key], ch)
		m.mu.Unlock()
	}()

	wo.markReady()

	for {
		select {
		case v := <-ch:
			handler(ctx, append([]byte(nil), v...))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// replaceLatest stores v in a one-slot channel, discarding an unread older value.
func replaceLatest(ch chan []byte, v []byte) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
