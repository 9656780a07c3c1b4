package primary

import (
	"context"
	"fmt"
	"log/slog"

	libOTP "github.com/pquerna/otp"

	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/config"
	"github.com/shandysiswandi/watchsync/internal/pkg/goroutine"
	"github.com/shandysiswandi/watchsync/internal/pkg/idempotency"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/primary/entity"
	"github.com/shandysiswandi/watchsync/internal/primary/inbound"
	"github.com/shandysiswandi/watchsync/internal/primary/usecase"
	"github.com/shandysiswandi/watchsync/internal/session"
)

type Dependency struct {
	Ctx         context.Context
	Config      config.Config
	Messaging   messaging.Messaging
	Slot        slot.Slot
	Idempotency idempotency.Idempotency
	Clock       clock.Clocker
	Goroutine   *goroutine.Manager
	UID         uid.NumberID
	UUID        uid.StringID
	Router      *router.Router
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) error {
	sender := session.NewSender(session.SenderDependency{
		Config:      session.NewConfig(dep.Config, "watchsync-primary-"+dep.UUID.Generate()),
		Messaging:   dep.Messaging,
		Slot:        dep.Slot,
		Idempotency: dep.Idempotency,
		Clock:       dep.Clock,
		Goroutine:   dep.Goroutine,
		Revision:    dep.UID,
		Instrument:  dep.Instrument,
	})

	uc := usecase.NewPrimary(usecase.Dependency{
		Sender:     sender,
		Instrument: dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	dep.Router.AddCheck("session.sender", sender.Ready)

	var feed *usecase.Feed
	if dep.Config.GetBool("modules.primary.feed.enabled") {
		accounts, err := feedAccounts(dep.Config)
		if err != nil {
			return err
		}

		digits := libOTP.DigitsSix
		if dep.Config.GetInt("modules.primary.feed.digits") == 8 {
			digits = libOTP.DigitsEight
		}

		feed = usecase.NewFeed(usecase.FeedDependency{
			Accounts: accounts,
			Locked:   dep.Config.GetBool("modules.primary.feed.locked"),
			Digits:   digits,
			Clock:    dep.Clock,
			Pusher:   uc,
		})
	}

	if dep.Ctx != nil {
		if err := dep.Goroutine.Go(dep.Ctx, "primary.session", func(ctx context.Context) error {
			slog.InfoContext(ctx, "running sender session")
			return session.Keep(ctx, sender, dep.Config.GetSecond("session.activate_timeout_seconds"))
		}); err != nil {
			return err
		}

		if feed != nil {
			if err := dep.Goroutine.Go(dep.Ctx, "primary.feed", func(ctx context.Context) error {
				slog.InfoContext(ctx, "running development feed")
				return feed.Run(ctx)
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

func feedAccounts(cfg config.Config) ([]entity.FeedAccount, error) {
	raw := cfg.GetArray("modules.primary.feed.accounts")
	accounts := make([]entity.FeedAccount, 0, len(raw))
	for _, item := range raw {
		account, err := entity.ParseFeedAccount(item)
		if err != nil {
			return nil, fmt.Errorf("modules.primary.feed.accounts: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
