package inbound

import (
	"context"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
)

type ucStream interface {
	Subscribe(ctx context.Context) <-chan entity.State
	WatchCountdown(ctx context.Context, id string, emit func(entity.Countdown)) error
}

type uc interface {
	ucStream

	State() entity.State
	Account(id string) (entity.AccountSnapshot, error)
}

// presence is told whether anyone is watching the companion.
type presence interface {
	SetForeground(ctx context.Context, foreground bool)
}
