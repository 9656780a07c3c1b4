package companion

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/watchsync/internal/companion/inbound"
	"github.com/shandysiswandi/watchsync/internal/companion/usecase"
	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/config"
	"github.com/shandysiswandi/watchsync/internal/pkg/goroutine"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/pkg/validator"
	"github.com/shandysiswandi/watchsync/internal/session"
)

type Dependency struct {
	Ctx        context.Context
	Config     config.Config
	Messaging  messaging.Messaging
	Slot       slot.Slot
	Clock      clock.Clocker
	Goroutine  *goroutine.Manager
	UUID       uid.StringID
	Validator  validator.Validator
	Router     *router.Router
	Instrument instrument.Instrumentation
}

func New(dep Dependency) error {
	uc := usecase.NewCompanion(usecase.Dependency{
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		Instrument: dep.Instrument,
	})

	receiver := session.NewReceiver(session.ReceiverDependency{
		Config:     session.NewConfig(dep.Config, "watchsync-companion-"+dep.UUID.Generate()),
		Messaging:  dep.Messaging,
		Slot:       dep.Slot,
		Clock:      dep.Clock,
		Goroutine:  dep.Goroutine,
		UUID:       dep.UUID,
		Instrument: dep.Instrument,
		Handler:    uc.Receive,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, receiver)
	dep.Router.AddCheck("session.receiver", receiver.Ready)

	if dep.Ctx != nil {
		return dep.Goroutine.Go(dep.Ctx, "companion.session", func(ctx context.Context) error {
			slog.InfoContext(ctx, "running receiver session", "companion_id", receiver.CompanionID())
			return session.Keep(ctx, receiver, dep.Config.GetSecond("session.activate_timeout_seconds"))
		})
	}

	return nil
}
