package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type flakyActivator struct {
	mu       sync.Mutex
	failures int
	attempts int
	closed   int
}

func (f *flakyActivator) Activate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("not yet")
	}
	return nil
}

func (f *flakyActivator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *flakyActivator) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, f.closed
}

func TestKeepRetriesThenClosesOnCancel(t *testing.T) {
	// Arrange
	a := &flakyActivator{failures: 2}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// Act
	go func() { done <- Keep(ctx, a, time.Second) }()
	waitFor(t, "activation", func() bool {
		attempts, _ := a.counts()
		return attempts == 3
	})
	cancel()

	// Assert
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Keep() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Keep() did not return after cancel")
	}
	if _, closed := a.counts(); closed != 1 {
		t.Errorf("Close() calls = %d, want 1", closed)
	}
}

func TestKeepCancelledWhileFailing(t *testing.T) {
	a := &flakyActivator{failures: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := Keep(ctx, a, time.Second); err != nil {
		t.Errorf("Keep() error = %v, want nil once ctx ends", err)
	}
	if _, closed := a.counts(); closed != 1 {
		t.Errorf("Close() calls = %d, want 1", closed)
	}
}
