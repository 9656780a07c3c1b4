package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestManagerCollectsErrors(t *testing.T) {
	// Arrange
	m := NewManager(4)
	errBoom := errors.New("boom")
	var ran atomic.Int32

	// Act
	for i := 0; i < 3; i++ {
		if err := m.Go(context.Background(), "ok", func(context.Context) error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Go() error = %v", err)
		}
	}
	_ = m.Go(context.Background(), "boom", func(context.Context) error { return errBoom })
	err := m.Wait()

	// Assert
	if !errors.Is(err, errBoom) {
		t.Errorf("Wait() error = %v, want boom", err)
	}
	if ran.Load() != 3 {
		t.Errorf("ran = %d, want 3", ran.Load())
	}
}

func TestManagerIgnoresOwnCancellation(t *testing.T) {
	m := NewManager(2)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	_ = m.Go(ctx, "loop", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	cancel()

	if err := m.Wait(); err != nil {
		t.Errorf("Wait() error = %v, want nil for a canceled loop", err)
	}
}

func TestManagerRecoversPanic(t *testing.T) {
	m := NewManager(1)
	_ = m.Go(context.Background(), "panic", func(context.Context) error { panic("kaboom") })

	if err := m.Wait(); err != nil {
		t.Errorf("Wait() error = %v, want nil", err)
	}
	if n := m.Running("panic"); n != 0 {
		t.Errorf("Running() = %d after panic, want 0", n)
	}
}

func TestManagerLimit(t *testing.T) {
	m := NewManager(1)
	release := make(chan struct{})
	started := make(chan struct{})
	var second atomic.Bool

	_ = m.Go(context.Background(), "first", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	if n := m.Running("first"); n != 1 {
		t.Errorf("Running(first) = %d, want 1", n)
	}

	err := m.Go(context.Background(), "second", func(context.Context) error {
		second.Store(true)
		return nil
	})
	close(release)
	_ = m.Wait()

	if !errors.Is(err, ErrLimitReached) {
		t.Errorf("Go() error = %v, want ErrLimitReached", err)
	}
	if second.Load() {
		t.Error("second goroutine ran while the manager was at its limit")
	}
}

func TestManagerClosedAndNil(t *testing.T) {
	m := NewManager(1)
	_ = m.Wait()

	var ran atomic.Bool
	err := m.Go(context.Background(), "late", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	if !errors.Is(err, ErrClosed) || ran.Load() {
		t.Errorf("Go() on closed manager = %v, ran %v", err, ran.Load())
	}

	var nilManager *Manager
	if err := nilManager.Go(context.Background(), "nil", func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("nil Go() error = %v", err)
	}
	if err := nilManager.Wait(); err != nil {
		t.Errorf("nil Wait() error = %v", err)
	}
}

func TestManagerSkipsCanceledContext(t *testing.T) {
	m := NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	_ = m.Go(ctx, "canceled", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	_ = m.Wait()

	if ran.Load() {
		t.Error("goroutine ran with a canceled context")
	}
}
