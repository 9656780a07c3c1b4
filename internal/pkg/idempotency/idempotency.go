// Package idempotency runs an operation at most once per key.
//
// The primary uses it so that a companion activation triggers exactly one
// redelivery of the cached context, even when the activation is announced
// more than once or seen by several processes. State lives in redis when
// processes share the key space and in process memory otherwise.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyInProgress = errors.New("operation already in progress")
	ErrAlreadyCompleted  = errors.New("operation already completed")
	ErrAlreadyFailed     = errors.New("operation already failed")
	ErrInvalidState      = errors.New("invalid state")
	ErrKeyRequired       = errors.New("idempotency key is required")
)

// State is what a key currently records.
type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateError      State = "error"
)

func (s State) String() string {
	return string(s)
}

// held maps a stored state to the error Exec reports for it.
var held = map[State]error{
	StateInProgress: ErrAlreadyInProgress,
	StateCompleted:  ErrAlreadyCompleted,
	StateFailed:     ErrAlreadyFailed,
}

// Idempotency is the surface callers depend on.
type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

// backend is the key/value surface a tracker needs.
type backend interface {
	setNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	get(ctx context.Context, key string) (value string, found bool, err error)
	set(ctx context.Context, key, value string, ttl time.Duration) error
}

// StateTracker implements Idempotency over a backend.
type StateTracker struct {
	store  backend
	prefix string
}

const (
	defaultPrefix       = "watchsync:once:"
	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Minute

	// a released key expires almost at once, so the next run can claim it
	releaseTTL = time.Millisecond
)

// Option tunes a single Exec call.
type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
	failRetry    bool
}

func (o *execOptions) normalize() {
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}
}

// WithLockDuration bounds how long a running fn holds the key.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long the outcome of fn is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// WithRetryOnFailure releases the key when fn fails so a later delivery of the
// same key can run again.
func WithRetryOnFailure() Option {
	return func(o *execOptions) { o.failRetry = true }
}

// Acquire claims key for lockDuration. It returns StateNone when the caller
// now owns the key and the recorded state otherwise.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	if key == "" {
		return StateError, ErrKeyRequired
	}
	fk := s.prefix + key

	// one retry covers the key expiring between setNX and get
	for range 2 {
		acquired, err := s.store.setNX(ctx, fk, StateInProgress.String(), lockDuration)
		if err != nil {
			return StateError, fmt.Errorf("claim %s: %w", key, err)
		}
		if acquired {
			return StateNone, nil
		}

		value, found, err := s.store.get(ctx, fk)
		if err != nil {
			return StateError, fmt.Errorf("read %s: %w", key, err)
		}
		if !found {
			continue
		}

		state := State(value)
		if _, ok := held[state]; !ok {
			return StateError, ErrInvalidState
		}
		return state, nil
	}

	return StateError, ErrInvalidState
}

func (s *StateTracker) mark(ctx context.Context, key string, state State, ttl time.Duration) error {
	if err := s.store.set(ctx, s.prefix+key, state.String(), ttl); err != nil {
		return fmt.Errorf("mark %s %s: %w", key, state, err)
	}
	return nil
}

// Exec runs fn unless key already records a run. The outcome is kept for the
// state TTL; a failure is released instead when WithRetryOnFailure is set.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := &execOptions{}
	for _, opt := range opts {
		opt(o)
	}
	o.normalize()

	state, err := s.Acquire(ctx, key, o.lockDuration)
	if err != nil {
		return err
	}
	if err, ok := held[state]; ok {
		return err
	}

	if err := fn(ctx); err != nil {
		ttl := o.stateTTL
		if o.failRetry {
			ttl = releaseTTL
		}
		return errors.Join(err, s.mark(ctx, key, StateFailed, ttl))
	}

	return s.mark(ctx, key, StateCompleted, o.stateTTL)
}
