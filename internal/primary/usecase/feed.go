package usecase

import (
	"context"
	"log/slog"
	"time"

	libOTP "github.com/pquerna/otp"

	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/otp"
	"github.com/shandysiswandi/watchsync/internal/primary/entity"
	"github.com/shandysiswandi/watchsync/internal/shared/event"
)

type pusher interface {
	PushContext(ctx context.Context, payload map[string]any) error
}

type FeedDependency struct {
	Accounts []entity.FeedAccount
	// Locked pushes contexts with isAuthenticated false.
	Locked bool
	Digits libOTP.Digits
	Clock  clock.Clocker
	Pusher pusher
}

// Feed recomputes fixture account codes every second and pushes them, the
// way the primary device UI would.
type Feed struct {
	accounts []entity.FeedAccount
	locked   bool
	totp     map[uint]*otp.TOTP
	hotp     *otp.HOTP
	clock    clock.Clocker
	pusher   pusher
}

func NewFeed(dep FeedDependency) *Feed {
	f := &Feed{
		accounts: dep.Accounts,
		locked:   dep.Locked,
		totp:     make(map[uint]*otp.TOTP),
		hotp:     otp.NewHOTP(dep.Digits),
		clock:    dep.Clock,
		pusher:   dep.Pusher,
	}
	for _, a := range dep.Accounts {
		if _, ok := f.totp[a.Period]; !ok && a.Type != event.AccountTypeHOTP {
			f.totp[a.Period] = otp.NewTOTP(a.Period, dep.Digits)
		}
	}
	return f
}

// Context builds the sync context at the given time. Accounts whose code
// cannot be generated are left out.
func (f *Feed) Context(ctx context.Context, at time.Time) event.SyncContextMessage {
	msg := event.SyncContextMessage{
		IsAuthenticated: !f.locked,
		Accounts:        make([]event.AccountSnapshotMessage, 0, len(f.accounts)),
	}

	for _, a := range f.accounts {
		snapshot := event.AccountSnapshotMessage{
			ID:     a.ID,
			Issuer: a.Issuer,
			Name:   a.Name,
			Type:   a.Type,
		}

		if a.Type == event.AccountTypeHOTP {
			code, err := f.hotp.Code(a.Secret, a.Counter)
			if err != nil {
				slog.WarnContext(ctx, "failed to generate feed code", "account", a.ID, "error", err)
				continue
			}
			snapshot.Code = code
		} else {
			w, err := f.totp[a.Period].Window(a.Secret, at)
			if err != nil {
				slog.WarnContext(ctx, "failed to generate feed code", "account", a.ID, "error", err)
				continue
			}
			snapshot.Code = w.Code
			snapshot.RemainingSeconds = w.RemainingSeconds
			snapshot.Period = w.Period
			snapshot.Progress = w.Progress
		}

		msg.Accounts = append(msg.Accounts, snapshot)
	}

	return msg
}

// Run pushes a fresh context right away and then once per second until ctx
// ends.
func (f *Feed) Run(ctx context.Context) error {
	ticker := f.clock.NewTicker(time.Second)
	defer ticker.Stop()

	f.push(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			f.push(ctx)
		}
	}
}

func (f *Feed) push(ctx context.Context) {
	msg := f.Context(ctx, f.clock.Now())
	if err := f.pusher.PushContext(ctx, msg.Map()); err != nil {
		slog.WarnContext(ctx, "feed push failed", "error", err)
	}
}
