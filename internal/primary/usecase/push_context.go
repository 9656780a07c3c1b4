package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/watchsync/internal/pkg/goerror"
)

// PushContext hands a sync context to the session. Transport outcomes are
// logged by the session and never surface here.
func (s *Usecase) PushContext(ctx context.Context, payload map[string]any) error {
	ctx, span := s.startSpan(ctx, "PushContext")
	defer span.End()

	if payload == nil {
		return goerror.NewInvalidFormat("Sync context must be a JSON object")
	}

	if err := s.sender.Push(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "failed to push sync context", "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

// Status reports the session as seen from the primary.
func (s *Usecase) Status(ctx context.Context) StatusOutput {
	_, span := s.startSpan(ctx, "Status")
	defer span.End()

	st := s.sender.Status()
	return StatusOutput{
		Activated:   st.Activated,
		Reachable:   st.Reachable,
		LastPush:    st.LastPush,
		Revision:    st.Revision,
		CompanionID: st.CompanionID,
	}
}
