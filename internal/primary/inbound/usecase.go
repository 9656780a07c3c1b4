package inbound

import (
	"context"

	"github.com/shandysiswandi/watchsync/internal/primary/usecase"
)

type uc interface {
	PushContext(ctx context.Context, payload map[string]any) error
	Status(ctx context.Context) usecase.StatusOutput
}
