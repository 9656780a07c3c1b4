package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/goroutine"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/shared/event"
)

// Handler receives every context payload, whichever channel carried it.
type Handler func(ctx context.Context, delivery event.Delivery, payload map[string]any)

// ReceiverDependency wires a Receiver.
type ReceiverDependency struct {
	Config     Config
	Messaging  messaging.Messaging
	Slot       slot.Slot
	Clock      clock.Clocker
	Goroutine  *goroutine.Manager
	UUID       uid.StringID
	Instrument instrument.Instrumentation
	Handler    Handler
}

// Receiver is the companion side of the session.
type Receiver struct {
	cfg     Config
	msg     messaging.Messaging
	slot    slot.Slot
	clock   clock.Clocker
	routine *goroutine.Manager
	uuid    uid.StringID
	handler Handler

	companionID  string
	activationID *atomic.String
	activated    *atomic.Bool
	foreground   *atomic.Bool

	// deliverMu orders deliveries from both loops; lastRev is the newest
	// revision handed to the handler.
	deliverMu sync.Mutex
	lastRev   int64

	mu     sync.Mutex
	base   context.Context
	stop   context.CancelFunc
	cancel context.CancelFunc

	received metric.Int64Counter
	rejected metric.Int64Counter
	stale    metric.Int64Counter
}

// NewReceiver constructs a Receiver with a companion id stable for the
// lifetime of the process.
func NewReceiver(dep ReceiverDependency) *Receiver {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}
	base, stop := context.WithCancel(context.Background())

	return &Receiver{
		cfg:     dep.Config.withDefaults(),
		msg:     dep.Messaging,
		slot:    dep.Slot,
		clock:   dep.Clock,
		routine: dep.Goroutine,
		uuid:    dep.UUID,
		handler: dep.Handler,

		companionID:  dep.UUID.Generate(),
		activationID: atomic.NewString(""),
		activated:    atomic.NewBool(false),
		foreground:   atomic.NewBool(false),

		base: base,
		stop: stop,

		received: instrument.Int64Counter(ins, meterName, "session.received", "Context payloads received"),
		rejected: instrument.Int64Counter(ins, meterName, "session.received.rejected", "Received payloads that were not JSON objects"),
		stale:    instrument.Int64Counter(ins, meterName, "session.received.stale", "Received payloads older than the last delivered revision"),
	}
}

// CompanionID identifies this companion process in presence messages.
func (r *Receiver) CompanionID() string {
	return r.companionID
}

// ActivationID returns the id of the current activation, empty when inactive.
func (r *Receiver) ActivationID() string {
	return r.activationID.Load()
}

// Ready reports ErrNotActivated until the receiver is subscribed.
func (r *Receiver) Ready() error {
	if !r.activated.Load() {
		return ErrNotActivated
	}
	return nil
}

// Activate subscribes to both channels, delivers the stored durable context
// and announces itself to the primary. It is idempotent.
func (r *Receiver) Activate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activated.Load() {
		return nil
	}

	loopCtx, cancel := context.WithCancel(r.base)

	err := startLoop(ctx, loopCtx, r.routine, "context", func(ctx context.Context, ready func()) error {
		opts := append([]messaging.ConsumeOption{}, r.cfg.ConsumeOptions...)
		opts = append(opts, messaging.WithReady(ready))
		return r.msg.Consume(ctx, r.cfg.ContextSubject, r.onMessage, opts...)
	}, r.onLoopStopped)
	if err != nil {
		cancel()
		slog.ErrorContext(ctx, "failed to subscribe immediate channel", "error", err)
		return err
	}

	err = startLoop(ctx, loopCtx, r.routine, "durable", func(ctx context.Context, ready func()) error {
		opts := append([]slot.WatchOption{}, r.cfg.WatchOptions...)
		opts = append(opts, slot.WithReady(ready))
		return r.slot.Watch(ctx, r.cfg.LatestContextKey, r.onSlot, opts...)
	}, r.onLoopStopped)
	if err != nil {
		cancel()
		slog.ErrorContext(ctx, "failed to watch durable channel", "error", err)
		return err
	}

	r.deliverStored(ctx)

	activationID := r.uuid.Generate()
	r.activationID.Store(activationID)
	r.cancel = cancel
	r.activated.Store(true)

	if err := r.publishPresence(ctx, event.PresenceActivated); err != nil {
		slog.WarnContext(ctx, "failed to announce activation", "error", err)
	}
	if err := r.routine.Go(loopCtx, "session.heartbeat", r.heartbeat); err != nil {
		slog.WarnContext(ctx, "failed to start heartbeat", "error", err)
	}

	slog.InfoContext(ctx, "receiver session activated",
		"companion_id", r.companionID,
		"activation_id", activationID,
	)
	return nil
}

// SetForeground records whether a presentation observer is attached and
// sends a heartbeat right away when it changes.
func (r *Receiver) SetForeground(ctx context.Context, foreground bool) {
	if r.foreground.Swap(foreground) == foreground || !r.activated.Load() {
		return
	}

	if err := r.publishPresence(ctx, r.presenceState()); err != nil {
		slog.WarnContext(ctx, "failed to publish presence", "error", err)
	}
}

// Reactivate tears the session down and activates it again with a new
// activation id.
func (r *Receiver) Reactivate(ctx context.Context) error {
	r.deactivate(ctx)
	return r.Activate(ctx)
}

// Close announces deactivation and stops every loop. The receiver cannot be
// activated again after Close.
func (r *Receiver) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ImmediateTimeout)
	defer cancel()

	r.deactivate(ctx)
	r.stop()
	return nil
}

func (r *Receiver) deactivate(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.activated.Load() {
		return
	}

	if err := r.publishPresence(ctx, event.PresenceDeactivated); err != nil {
		slog.WarnContext(ctx, "failed to announce deactivation", "error", err)
	}

	r.activated.Store(false)
	r.activationID.Store("")
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Receiver) onLoopStopped(error) {
	if r.base.Err() != nil {
		return
	}

	// Reactivate outside the stopped loop goroutine.
	if err := r.routine.Go(r.base, "session.reactivate", func(ctx context.Context) error {
		slog.WarnContext(ctx, "receiver loop stopped, reactivating")
		return activateWithBackoff(ctx, defaultActivateTimeout, r.Reactivate)
	}); err != nil {
		slog.ErrorContext(r.base, "failed to schedule reactivation", "error", err)
	}
}

func (r *Receiver) presenceState() event.PresenceState {
	if r.foreground.Load() {
		return event.PresenceForeground
	}
	return event.PresenceBackground
}

func (r *Receiver) heartbeat(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	if err := r.publishPresence(ctx, r.presenceState()); err != nil {
		slog.WarnContext(ctx, "failed to publish heartbeat", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := r.publishPresence(ctx, r.presenceState()); err != nil {
				slog.WarnContext(ctx, "failed to publish heartbeat", "error", err)
			}
		}
	}
}

func (r *Receiver) publishPresence(ctx context.Context, state event.PresenceState) error {
	body, err := json.Marshal(event.PresenceMessage{
		CompanionID:  r.companionID,
		ActivationID: r.activationID.Load(),
		State:        state,
		SentAt:       r.clock.Now(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ImmediateTimeout)
	defer cancel()

	return r.msg.Publish(ctx, r.cfg.PresenceSubject, messaging.OutgoingMessage{
		Body: body,
		Key:  []byte(r.companionID),
		Headers: map[string]string{
			event.HeaderCorrelationID: instrument.GetCorrelationID(ctx),
		},
	})
}

func (r *Receiver) onMessage(ctx context.Context, msg messaging.Message) error {
	if cID := msg.Header(event.HeaderCorrelationID); cID != "" {
		ctx = instrument.SetCorrelationID(ctx, cID)
	}
	rev, _ := strconv.ParseInt(msg.Header(event.HeaderRevision), 10, 64)
	r.deliver(ctx, event.DeliveryMessage, msg.Body, rev)
	return nil
}

func (r *Receiver) onSlot(ctx context.Context, value []byte) {
	r.deliver(ctx, event.DeliveryContextLive, value, 0)
}

// deliverStored hands the durable context present at activation to the
// handler, if there is one.
func (r *Receiver) deliverStored(ctx context.Context) {
	getCtx, cancel := context.WithTimeout(ctx, r.cfg.DurableTimeout)
	defer cancel()

	value, err := r.slot.Get(getCtx, r.cfg.LatestContextKey)
	if errors.Is(err, slot.ErrEmpty) || len(value) == 0 && err == nil {
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to read stored context", "error", err)
		return
	}

	r.deliver(ctx, event.DeliveryContextOnActivation, value, 0)
}

// deliver hands the context carried by body to the handler unless a newer
// revision was already delivered. The envelope revision wins over
// fallbackRev; revision 0 means unknown and is always delivered.
func (r *Receiver) deliver(ctx context.Context, delivery event.Delivery, body []byte, fallbackRev int64) {
	body, rev := unwrap(body)
	if rev == 0 {
		rev = max(fallbackRev, 0)
	}

	payload, err := decodeObject(body)
	if err != nil {
		r.rejected.Add(ctx, 1)
		slog.WarnContext(ctx, "dropping undecodable context payload",
			"delivery", delivery.String(),
			"error", fmt.Errorf("decode: %w", err),
		)
		return
	}

	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	if rev > 0 && rev < r.lastRev {
		r.stale.Add(ctx, 1)
		slog.InfoContext(ctx, "dropping stale context payload",
			"delivery", delivery.String(),
			"revision", rev,
			"last_revision", r.lastRev,
		)
		return
	}
	r.lastRev = max(r.lastRev, rev)

	r.received.Add(ctx, 1)
	if r.handler != nil {
		r.handler(ctx, delivery, payload)
	}
}
