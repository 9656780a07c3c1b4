package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
)

const tickInterval = time.Second

// Projector extrapolates the countdown of one account between snapshots.
// It is owned by a single detail stream and is not safe for concurrent use.
type Projector struct {
	account entity.AccountSnapshot
	state   entity.ProjectedAccountState
}

// NewProjector seeds the countdown from snapshot.
func NewProjector(snapshot entity.AccountSnapshot) *Projector {
	p := &Projector{}
	p.Reseed(snapshot)
	return p
}

// Reseed restarts the countdown from a fresh authoritative snapshot.
func (p *Projector) Reseed(snapshot entity.AccountSnapshot) {
	p.account = snapshot
	p.state = entity.ProjectedAccountState{
		RemainingSeconds: snapshot.RemainingSeconds,
		Progress:         snapshot.Progress,
	}
}

// Tick advances the countdown by one second, never below zero. Counter-based
// accounts do not count down.
func (p *Projector) Tick() {
	if p.account.IsCounterBased() {
		return
	}

	remaining := max(p.state.RemainingSeconds-1, 0)
	progress := 0.0
	if p.account.Period > 0 {
		progress = float64(remaining) / float64(p.account.Period)
	}

	p.state = entity.ProjectedAccountState{RemainingSeconds: remaining, Progress: progress}
}

// State returns the projected countdown.
func (p *Projector) State() entity.ProjectedAccountState {
	return p.state
}

// Countdown renders the projection for a detail view.
func (p *Projector) Countdown() entity.Countdown {
	return entity.Countdown{
		ID:               p.account.ID,
		Code:             p.account.Code,
		RemainingSeconds: p.state.RemainingSeconds,
		Progress:         p.state.Progress,
		Level:            entity.LevelFor(p.state.RemainingSeconds),
		ShowRing:         p.account.IsTimeBound(),
	}
}

// Run emits the countdown now, on every tick and on every fresh state, until
// ctx ends or states closes. The one-second ticker only runs while the
// account is time-bound. It returns entity.ErrAccountNotFound once a fresh
// state no longer holds the account.
func (p *Projector) Run(
	ctx context.Context,
	clk clock.Clocker,
	states <-chan entity.State,
	emit func(entity.Countdown),
) error {
	var ticker clock.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	syncTicker := func() <-chan time.Time {
		switch {
		case p.account.IsTimeBound() && ticker == nil:
			ticker = clk.NewTicker(tickInterval)
		case p.account.IsCounterBased() && ticker != nil:
			ticker.Stop()
			ticker = nil
		}
		if ticker == nil {
			return nil
		}
		return ticker.C()
	}

	emit(p.Countdown())
	tick := syncTicker()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick:
			p.Tick()
			emit(p.Countdown())

		case st, ok := <-states:
			if !ok {
				return nil
			}
			account, found := st.Account(p.account.ID)
			if !found {
				return entity.ErrAccountNotFound
			}
			p.Reseed(account)
			tick = syncTicker()
			emit(p.Countdown())
		}
	}
}
