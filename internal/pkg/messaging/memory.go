package messaging

import (
	"context"
	"errors"
	"io"
	"maps"
	"strconv"
	"sync"
	"time"
)

const memoryBuffer = 16

// ErrMemorySubjectRequired is returned when the subject is empty.
var ErrMemorySubjectRequired = errors.New("messaging: memory subject is required")

// Memory is an in-process broadcast bus. It serves the single-process "both"
// role and tests.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	seq    uint64
	closed chan struct{}
	once   sync.Once
}

type memorySub struct {
	ch   chan Message
	done chan struct{}
}

// NewMemory constructs an empty bus.
func NewMemory() *Memory {
	return &Memory{
		subs:   map[string]map[*memorySub]struct{}{},
		closed: make(chan struct{}),
	}
}

// Close stops all consumers. Publishing afterwards fails with io.ErrClosedPipe.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *Memory) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Publish delivers msg to every consumer currently subscribed to destination.
// It blocks while a consumer buffer is full.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if destination == "" {
		return ErrMemorySubjectRequired
	}
	if m.isClosed() {
		return io.ErrClosedPipe
	}

	m.mu.Lock()
	m.seq++
	id := strconv.FormatUint(m.seq, 10)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	for sub := range m.subs[destination] {
		delivered := Message{
			Body:       append([]byte(nil), msg.Body...),
			Headers:    maps.Clone(msg.Headers),
			Source:     destination,
			ID:         id,
			ReceivedAt: time.Now(),
		}

		select {
		case sub.ch <- delivered:
		case <-sub.done:
		case <-m.closed:
			return io.ErrClosedPipe
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Consume subscribes to source and handles messages in publish order.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrMemorySubjectRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	if m.isClosed() {
		return io.ErrClosedPipe
	}

	co := newConsumeOptions(opts...)
	sub := &memorySub{ch: make(chan Message, memoryBuffer), done: make(chan struct{})}

	m.mu.Lock()
	if m.subs[source] == nil {
		m.subs[source] = map[*memorySub]struct{}{}
	}
	m.subs[source][sub] = struct{}{}
	m.mu.Unlock()

	defer func() {
		close(sub.done)
		m.mu.Lock()
		delete(m.subs[source], sub)
		m.mu.Unlock()
	}()

	co.markReady()

	for {
		select {
		case msg := <-sub.ch:
			dispatch(ctx, DriverMemory, handler, msg)
		case <-m.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribers reports how many consumers are attached to subject.
func (m *Memory) Subscribers(subject string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[subject])
}
