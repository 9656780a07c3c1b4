package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/watchsync/internal/companion"
	"github.com/shandysiswandi/watchsync/internal/primary"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.primary.enabled") {
		if err := primary.New(primary.Dependency{
			Ctx:         a.ctx,
			Config:      a.config,
			Messaging:   a.messaging,
			Slot:        a.slot,
			Idempotency: a.idemp,
			Clock:       a.clock,
			Goroutine:   a.goroutine,
			UID:         a.uid,
			UUID:        a.uuid,
			Router:      a.router,
			Instrument:  a.ins,
		}); err != nil {
			slog.Error("failed to init module primary", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.companion.enabled") {
		if err := companion.New(companion.Dependency{
			Ctx:        a.ctx,
			Config:     a.config,
			Messaging:  a.messaging,
			Slot:       a.slot,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			UUID:       a.uuid,
			Validator:  a.validator,
			Router:     a.router,
			Instrument: a.ins,
		}); err != nil {
			slog.Error("failed to init module companion", "error", err)
			os.Exit(1)
		}
	}
}
