// Package session carries sync context payloads from the primary to the
// companion over two channels: an immediate message channel that only works
// while the companion is reachable, and a durable single-slot register that
// always holds the latest context.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/watchsync/internal/pkg/goroutine"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
	"github.com/shandysiswandi/watchsync/internal/shared/event"
)

var (
	// ErrNotActivated is returned by sends before activation completed.
	ErrNotActivated = errors.New("session: not activated")
	// ErrTransportUnavailable is returned by an immediate send while the
	// companion is not reachable.
	ErrTransportUnavailable = errors.New("session: companion not reachable")
	// ErrTransportWriteFailed wraps a durable slot write failure.
	ErrTransportWriteFailed = errors.New("session: durable write failed")
	// ErrPayloadTooLarge is returned when the encoded payload exceeds the
	// configured limit.
	ErrPayloadTooLarge = errors.New("session: payload too large")
	// ErrPayloadNotObject is returned when a received payload is not a JSON object.
	ErrPayloadNotObject = errors.New("session: payload is not a JSON object")

	errLoopStopped = errors.New("session: loop stopped")
)

const (
	defaultImmediateTimeout  = 2 * time.Second
	defaultDurableTimeout    = 5 * time.Second
	defaultReachableTTL      = 15 * time.Second
	defaultHeartbeatInterval = 5 * time.Second
	defaultMaxPayloadBytes   = 65536

	meterName = "watchsync/session"
)

// Config holds the subjects, keys and timings shared by both sides.
type Config struct {
	ContextSubject   string
	PresenceSubject  string
	LatestContextKey string

	ImmediateTimeout  time.Duration
	DurableTimeout    time.Duration
	ReachableTTL      time.Duration
	HeartbeatInterval time.Duration
	MaxPayloadBytes   int

	// ConsumeOptions are passed to every Consume call, e.g. a consumer group
	// unique to this process.
	ConsumeOptions []messaging.ConsumeOption
	// WatchOptions are passed to the durable slot watch.
	WatchOptions []slot.WatchOption
}

func (c Config) withDefaults() Config {
	if c.ContextSubject == "" {
		c.ContextSubject = event.ContextDestination
	}
	if c.PresenceSubject == "" {
		c.PresenceSubject = event.PresenceDestination
	}
	if c.LatestContextKey == "" {
		c.LatestContextKey = event.LatestContextKey
	}
	if c.ImmediateTimeout <= 0 {
		c.ImmediateTimeout = defaultImmediateTimeout
	}
	if c.DurableTimeout <= 0 {
		c.DurableTimeout = defaultDurableTimeout
	}
	if c.ReachableTTL <= 0 {
		c.ReachableTTL = defaultReachableTTL
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = defaultMaxPayloadBytes
	}
	return c
}

// envelope is the body written to both channels. Revision orders pushes so
// the companion can drop a payload older than one it already applied.
type envelope struct {
	Revision int64           `json:"revision"`
	Context  json.RawMessage `json:"context"`
}

func wrap(body []byte, rev int64) ([]byte, error) {
	return json.Marshal(envelope{Revision: rev, Context: body})
}

// unwrap returns the context carried by an envelope and its revision. Bodies
// that are not an envelope come back as is with revision 0.
func unwrap(body []byte) ([]byte, int64) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Context) == 0 {
		return body, 0
	}
	return env.Context, max(env.Revision, 0)
}

// decodeObject parses body as a JSON object, keeping numbers as json.Number.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadNotObject, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrPayloadNotObject)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrPayloadNotObject
	}
	return obj, nil
}

// startLoop runs a blocking subscription on the goroutine manager and waits
// until it is ready. onStop, when set, is called if a ready loop ends before
// loopCtx does.
func startLoop(
	ctx context.Context,
	loopCtx context.Context,
	routine *goroutine.Manager,
	name string,
	run func(ctx context.Context, ready func()) error,
	onStop func(err error),
) error {
	ready := make(chan struct{})
	failed := make(chan error, 1)
	var once sync.Once

	err := routine.Go(loopCtx, name, func(ctx context.Context) error {
		err := run(ctx, func() { once.Do(func() { close(ready) }) })
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errLoopStopped
		}

		slog.WarnContext(ctx, "session loop stopped", "loop", name, "error", err)
		select {
		case <-ready:
			if onStop != nil {
				onStop(err)
			}
			return nil
		default:
		}
		select {
		case failed <- fmt.Errorf("%s: %w", name, err):
		default:
		}
		return nil
	})
	if err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case err := <-failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
