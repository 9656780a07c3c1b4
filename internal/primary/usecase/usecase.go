package usecase

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/session"
)

type sender interface {
	Push(ctx context.Context, payload map[string]any) error
	Status() session.Status
}

type Dependency struct {
	Sender     sender
	Instrument instrument.Instrumentation
}

type Usecase struct {
	sender sender
	ins    instrument.Instrumentation
}

func NewPrimary(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	return &Usecase{sender: dep.Sender, ins: ins}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("primary.usecase").Start(ctx, name)
}
