package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/goroutine"
	"github.com/shandysiswandi/watchsync/internal/pkg/idempotency"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/shared/event"
)

// SenderDependency wires a Sender.
type SenderDependency struct {
	Config      Config
	Messaging   messaging.Messaging
	Slot        slot.Slot
	Idempotency idempotency.Idempotency
	Clock       clock.Clocker
	Goroutine   *goroutine.Manager
	Revision    uid.NumberID
	Instrument  instrument.Instrumentation
}

// Status reports the sender state.
type Status struct {
	Activated   bool       `json:"activated"`
	Reachable   bool       `json:"reachable"`
	LastPush    *time.Time `json:"lastPush"`
	Revision    int64      `json:"revision"`
	CompanionID string     `json:"companionId"`
}

// Sender is the primary side of the session.
type Sender struct {
	cfg      Config
	msg      messaging.Messaging
	slot     slot.Slot
	idem     idempotency.Idempotency
	clock    clock.Clocker
	routine  *goroutine.Manager
	revision uid.NumberID

	ctx    context.Context
	cancel context.CancelFunc

	activateMu sync.Mutex
	activated  *atomic.Bool

	reachableUntil *atomic.Time
	lastPush       *atomic.Time
	companionID    *atomic.String

	cacheMu   sync.RWMutex
	latest    []byte
	latestRev int64

	pushes          metric.Int64Counter
	immediateDrops  metric.Int64Counter
	durableFailures metric.Int64Counter
}

// NewSender constructs a Sender. It does nothing until Activate is called.
func NewSender(dep SenderDependency) *Sender {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Sender{
		cfg:      dep.Config.withDefaults(),
		msg:      dep.Messaging,
		slot:     dep.Slot,
		idem:     dep.Idempotency,
		clock:    dep.Clock,
		routine:  dep.Goroutine,
		revision: dep.Revision,

		ctx:    ctx,
		cancel: cancel,

		activated:      atomic.NewBool(false),
		reachableUntil: atomic.NewTime(time.Time{}),
		lastPush:       atomic.NewTime(time.Time{}),
		companionID:    atomic.NewString(""),

		pushes:          instrument.Int64Counter(ins, meterName, "session.pushes", "Context pushes handed to the session"),
		immediateDrops:  instrument.Int64Counter(ins, meterName, "session.immediate.drops", "Immediate sends skipped or failed"),
		durableFailures: instrument.Int64Counter(ins, meterName, "session.durable.failures", "Durable slot writes that failed"),
	}
}

// Activate subscribes to companion presence and re-pushes the cached context.
// It is idempotent; a failed activation can be retried.
func (s *Sender) Activate(ctx context.Context) error {
	s.activateMu.Lock()
	defer s.activateMu.Unlock()

	if s.activated.Load() {
		return nil
	}

	err := startLoop(ctx, s.ctx, s.routine, "presence", func(ctx context.Context, ready func()) error {
		opts := append([]messaging.ConsumeOption{}, s.cfg.ConsumeOptions...)
		opts = append(opts, messaging.WithReady(ready))
		return s.msg.Consume(ctx, s.cfg.PresenceSubject, s.onPresence, opts...)
	}, s.onLoopStopped)
	if err != nil {
		slog.ErrorContext(ctx, "failed to activate sender session", "error", err)
		return err
	}

	s.restoreCache(ctx)
	s.activated.Store(true)
	slog.InfoContext(ctx, "sender session activated")

	if err := s.redeliver(ctx); err != nil {
		slog.WarnContext(ctx, "failed to re-push latest context on activation", "error", err)
	}

	return nil
}

// onLoopStopped marks the sender inactive when the presence subscription is
// lost and activates it again in the background.
func (s *Sender) onLoopStopped(error) {
	s.activateMu.Lock()
	s.activated.Store(false)
	s.activateMu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	if err := s.routine.Go(s.ctx, "session.reactivate", func(ctx context.Context) error {
		slog.WarnContext(ctx, "sender presence loop stopped, reactivating")
		return activateWithBackoff(ctx, defaultActivateTimeout, s.Activate)
	}); err != nil {
		slog.ErrorContext(s.ctx, "failed to schedule sender reactivation", "error", err)
	}
}

// Ready reports ErrNotActivated until the presence subscription is up.
func (s *Sender) Ready() error {
	if !s.activated.Load() {
		return ErrNotActivated
	}
	return nil
}

// Close stops the presence subscription.
func (s *Sender) Close() error {
	s.cancel()
	s.activated.Store(false)
	return nil
}

// Push caches payload and hands it to both channels. Channel errors are
// logged, never returned; only an unencodable payload fails.
func (s *Sender) Push(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	rev := s.revision.Generate()
	s.storeCache(body, rev)
	s.lastPush.Store(s.clock.Now())
	s.pushes.Add(ctx, 1)

	if err := s.sendImmediate(ctx, body, rev); err != nil {
		slog.DebugContext(ctx, "immediate send skipped", "revision", rev, "error", err)
	}

	if err := s.sendDurable(ctx, body, rev); err != nil {
		if errors.Is(err, ErrNotActivated) {
			slog.DebugContext(ctx, "durable send skipped", "revision", rev, "error", err)
		} else {
			slog.WarnContext(ctx, "durable send failed", "revision", rev, "error", err)
		}
	}

	return nil
}

// SendImmediate publishes payload on the immediate channel without waiting
// for the companion. It fails fast when the companion is not reachable.
func (s *Sender) SendImmediate(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.sendImmediate(ctx, body, s.revision.Generate())
}

// SendDurable overwrites the latest context slot with payload.
func (s *Sender) SendDurable(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.sendDurable(ctx, body, s.revision.Generate())
}

// Status returns a snapshot of the sender state.
func (s *Sender) Status() Status {
	st := Status{
		Activated:   s.activated.Load(),
		Reachable:   s.reachable(),
		CompanionID: s.companionID.Load(),
	}

	if t := s.lastPush.Load(); !t.IsZero() {
		st.LastPush = &t
	}

	s.cacheMu.RLock()
	st.Revision = s.latestRev
	s.cacheMu.RUnlock()

	return st
}

func (s *Sender) reachable() bool {
	return s.clock.Now().Before(s.reachableUntil.Load())
}

func (s *Sender) sendImmediate(ctx context.Context, body []byte, rev int64) error {
	if !s.activated.Load() {
		s.immediateDrops.Add(ctx, 1)
		return ErrNotActivated
	}
	if !s.reachable() {
		s.immediateDrops.Add(ctx, 1)
		return ErrTransportUnavailable
	}

	value, err := wrap(body, rev)
	if err != nil {
		s.immediateDrops.Add(ctx, 1)
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	msg := messaging.OutgoingMessage{
		Body: value,
		Headers: map[string]string{
			event.HeaderCorrelationID: cID,
			event.HeaderRevision:      strconv.FormatInt(rev, 10),
		},
	}

	err = s.routine.Go(s.ctx, "session.immediate", func(ctx context.Context) error {
		ctx = instrument.SetCorrelationID(ctx, cID)
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ImmediateTimeout)
		defer cancel()

		if err := s.msg.Publish(ctx, s.cfg.ContextSubject, msg); err != nil {
			s.immediateDrops.Add(ctx, 1)
			slog.WarnContext(ctx, "immediate send failed", "revision", rev, "error", err)
		}
		return nil
	})
	if err != nil {
		s.immediateDrops.Add(ctx, 1)
		return err
	}

	return nil
}

func (s *Sender) sendDurable(ctx context.Context, body []byte, rev int64) error {
	if !s.activated.Load() {
		return ErrNotActivated
	}

	value, err := wrap(body, rev)
	if err != nil {
		s.durableFailures.Add(ctx, 1)
		return err
	}
	if len(value) > s.cfg.MaxPayloadBytes {
		s.durableFailures.Add(ctx, 1)
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(value), s.cfg.MaxPayloadBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DurableTimeout)
	defer cancel()

	if err := s.slot.Put(ctx, s.cfg.LatestContextKey, value); err != nil {
		s.durableFailures.Add(ctx, 1)
		return fmt.Errorf("%w: %w", ErrTransportWriteFailed, err)
	}
	return nil
}

// redeliver pushes the cached context again on both channels.
func (s *Sender) redeliver(ctx context.Context) error {
	body, rev := s.cached()
	if body == nil {
		return nil
	}

	if err := s.sendImmediate(ctx, body, rev); err != nil {
		slog.DebugContext(ctx, "immediate re-delivery skipped", "revision", rev, "error", err)
	}
	return s.sendDurable(ctx, body, rev)
}

func (s *Sender) onPresence(ctx context.Context, msg messaging.Message) error {
	var presence event.PresenceMessage
	if err := json.Unmarshal(msg.Body, &presence); err != nil {
		return fmt.Errorf("decode presence: %w", err)
	}

	now := s.clock.Now()
	if presence.CompanionID != "" {
		s.companionID.Store(presence.CompanionID)
	}

	switch presence.State {
	case event.PresenceForeground:
		s.reachableUntil.Store(now.Add(s.cfg.ReachableTTL))

	case event.PresenceBackground:
		s.reachableUntil.Store(time.Time{})

	case event.PresenceDeactivated:
		s.reachableUntil.Store(time.Time{})
		slog.InfoContext(ctx, "companion deactivated", "companion_id", presence.CompanionID)

	case event.PresenceActivated:
		slog.InfoContext(ctx, "companion activated",
			"companion_id", presence.CompanionID,
			"activation_id", presence.ActivationID,
		)
		err := s.idem.Exec(ctx, "redeliver:"+presence.ActivationID, s.redeliver,
			idempotency.WithRetryOnFailure(),
			idempotency.WithStateTTL(time.Hour),
		)
		switch {
		case errors.Is(err, idempotency.ErrAlreadyCompleted), errors.Is(err, idempotency.ErrAlreadyInProgress):
			slog.DebugContext(ctx, "activation already handled", "activation_id", presence.ActivationID)
		case err != nil:
			return fmt.Errorf("redeliver for activation %s: %w", presence.ActivationID, err)
		}

	default:
		return fmt.Errorf("unknown presence state %q", presence.State)
	}

	return nil
}

func (s *Sender) storeCache(body []byte, rev int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.latest = body
	s.latestRev = rev
}

func (s *Sender) cached() ([]byte, int64) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	return s.latest, s.latestRev
}

// restoreCache loads the durable slot into an empty cache, e.g. after the
// primary restarted.
func (s *Sender) restoreCache(ctx context.Context) {
	if body, _ := s.cached(); body != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DurableTimeout)
	defer cancel()

	value, err := s.slot.Get(ctx, s.cfg.LatestContextKey)
	if errors.Is(err, slot.ErrEmpty) {
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to restore latest context", "error", err)
		return
	}

	body, rev := unwrap(value)

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.latest == nil {
		s.latest = body
		s.latestRev = rev
	}
}
