package goroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/watchsync/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 100

var (
	// ErrLimitReached is returned by Go when every slot is taken.
	ErrLimitReached = errors.New("goroutine: limit reached")
	// ErrClosed is returned by Go once Wait has been called.
	ErrClosed = errors.New("goroutine: manager closed")
)

// Manager runs named tasks in goroutines with a concurrency limit. Session
// loops, heartbeats and fire-and-forget sends all share one manager, so Wait
// on shutdown drains every one of them.
//
// Errors returned by tasks are collected, except those caused by the task's
// own context ending.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	running map[string]int
	wg      sync.WaitGroup
	sema    chan struct{}
	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{
		running: make(map[string]int),
		sema:    make(chan struct{}, maxGoroutine),
	}
}

// Go schedules f under name. It never blocks: when the manager is closed or
// full the task is not run and an error is returned.
func (g *Manager) Go(ctx context.Context, name string, f func(ctx context.Context) error) error {
	if g == nil {
		return ErrClosed
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager is closed, skipping task", "task", name)
		return fmt.Errorf("%s: %w", name, ErrClosed)
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "maximum goroutine limit reached, skipping task", "task", name, "limit", cap(g.sema))
		return fmt.Errorf("%s: %w", name, ErrLimitReached)
	}

	g.track(name, 1)
	g.wg.Go(func() {
		defer func() {
			g.track(name, -1)
			<-g.sema

			if rvr := recover(); rvr != nil {
				stack := debug.Stack()
				if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
					slog.ErrorContext(ctx, "panic occurred in task", "task", name, "panic", rvr, "stack", paths)
				} else {
					slog.ErrorContext(ctx, "panic occurred in task", "task", name, "panic", rvr, "stack", string(stack))
				}
			}
		}()

		if ctx.Err() != nil {
			slog.WarnContext(ctx, "task canceled before start", "task", name, "because", ctx.Err())
			return
		}

		err := f(ctx)
		if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
			return
		}

		g.mu.Lock()
		g.errs = append(g.errs, fmt.Errorf("%s: %w", name, err))
		g.mu.Unlock()
	})

	return nil
}

func (g *Manager) track(name string, delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.running[name] += delta
	if g.running[name] <= 0 {
		delete(g.running, name)
	}
}

// Running reports how many tasks named name are in flight.
func (g *Manager) Running(name string) int {
	if g == nil {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[name]
}

// Wait closes the manager, blocks until every task finishes and returns the
// collected errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
