package usecase

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/validator"
)

const meterName = "watchsync/companion"

// Usecase owns the authoritative companion state. There is one per process.
type Usecase struct {
	clock     clock.Clocker
	validator validator.Validator
	ins       instrument.Instrumentation

	mu    sync.Mutex
	state entity.State

	subMu sync.Mutex
	subs  map[*subscriber]struct{}

	applied        metric.Int64Counter
	rejected       metric.Int64Counter
	droppedEntries metric.Int64Counter
}

type Dependency struct {
	Clock      clock.Clocker
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func NewCompanion(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	return &Usecase{
		clock:     dep.Clock,
		validator: dep.Validator,
		ins:       ins,
		subs:      make(map[*subscriber]struct{}),

		applied:        instrument.Int64Counter(ins, meterName, "companion.context.applied", "Sync context payloads applied"),
		rejected:       instrument.Int64Counter(ins, meterName, "companion.context.rejected", "Sync context payloads rejected as malformed"),
		droppedEntries: instrument.Int64Counter(ins, meterName, "companion.account.dropped", "Account entries dropped from applied payloads"),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("companion.usecase").Start(ctx, name)
}

// State returns a copy of the current authoritative state.
func (s *Usecase) State() entity.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}
