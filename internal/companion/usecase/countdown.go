package usecase

import (
	"context"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
)

// WatchCountdown streams the countdown of one account to emit until ctx ends.
// It returns entity.ErrAccountNotFound right away when the account is not in
// the current state, or later when it disappears.
func (s *Usecase) WatchCountdown(ctx context.Context, id string, emit func(entity.Countdown)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := s.Subscribe(ctx)
	current := <-states

	account, ok := current.Account(id)
	if !ok {
		return entity.ErrAccountNotFound
	}

	return NewProjector(account).Run(ctx, s.clock, states, emit)
}

// Account returns one account of the current state.
func (s *Usecase) Account(id string) (entity.AccountSnapshot, error) {
	account, ok := s.State().Account(id)
	if !ok {
		return entity.AccountSnapshot{}, entity.ErrAccountNotFound
	}
	return account, nil
}
