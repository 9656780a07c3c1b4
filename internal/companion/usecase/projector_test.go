package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
)

func totpSnapshot(id string, remaining int) entity.AccountSnapshot {
	return entity.AccountSnapshot{
		ID:               id,
		Issuer:           "Issuer",
		Code:             "123456",
		RemainingSeconds: remaining,
		Period:           30,
		Type:             entity.AccountTypeTOTP,
		Progress:         float64(remaining) / 30,
	}
}

func TestProjectorSeed(t *testing.T) {
	snapshot := totpSnapshot("a", 10)
	snapshot.Progress = 0.5

	p := NewProjector(snapshot)

	if got := p.State(); got.RemainingSeconds != 10 || got.Progress != 0.5 {
		t.Errorf("State() = %+v, want the snapshot values", got)
	}
}

func TestProjectorTick(t *testing.T) {
	// Arrange
	p := NewProjector(totpSnapshot("a", 10))

	// Act
	for range 3 {
		p.Tick()
	}

	// Assert
	got := p.State()
	if got.RemainingSeconds != 7 {
		t.Errorf("RemainingSeconds = %d, want 7", got.RemainingSeconds)
	}
	if math.Abs(got.Progress-7.0/30) > 1e-9 {
		t.Errorf("Progress = %v, want %v", got.Progress, 7.0/30)
	}
}

func TestProjectorTickFloorsAtZero(t *testing.T) {
	p := NewProjector(totpSnapshot("a", 10))

	for i := 0; i < 15; i++ {
		p.Tick()
		if got := p.State(); got.RemainingSeconds < 0 || got.Progress < 0 {
			t.Fatalf("tick %d: State() = %+v, went negative", i, got)
		}
	}

	if got := p.State(); got.RemainingSeconds != 0 || got.Progress != 0 {
		t.Errorf("State() = %+v, want zero", got)
	}
	if c := p.Countdown(); c.Level != entity.CountdownUrgent {
		t.Errorf("Level = %s, want urgent", c.Level)
	}
}

func TestProjectorCounterBased(t *testing.T) {
	p := NewProjector(entity.AccountSnapshot{ID: "h", Code: "287082", Type: entity.AccountTypeHOTP, RemainingSeconds: 3})

	p.Tick()
	p.Tick()

	if got := p.State(); got.RemainingSeconds != 3 {
		t.Errorf("RemainingSeconds = %d, want it untouched", got.RemainingSeconds)
	}
	if p.Countdown().ShowRing {
		t.Error("ShowRing = true for a counter-based account")
	}
}

func TestProjectorReseed(t *testing.T) {
	p := NewProjector(totpSnapshot("a", 10))
	p.Tick()
	p.Tick()

	fresh := totpSnapshot("a", 29)
	fresh.Code = "654321"
	p.Reseed(fresh)

	c := p.Countdown()
	if c.RemainingSeconds != 29 || c.Code != "654321" || c.Level != entity.CountdownNormal || !c.ShowRing {
		t.Errorf("Countdown() = %+v after reseed", c)
	}
}

// countdowns collects emitted countdowns for Run.
type countdowns struct {
	mu   sync.Mutex
	list []entity.Countdown
}

func (c *countdowns) emit(v entity.Countdown) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, v)
}

func (c *countdowns) all() []entity.Countdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.Countdown(nil), c.list...)
}

func (c *countdowns) last() entity.Countdown {
	all := c.all()
	if len(all) == 0 {
		return entity.Countdown{}
	}
	return all[len(all)-1]
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stateWith(accounts ...entity.AccountSnapshot) entity.State {
	return entity.State{Context: entity.SyncContext{IsAuthenticated: true, Accounts: accounts}, Revision: 1}
}

func TestProjectorRun(t *testing.T) {
	// Arrange
	clk := clock.NewManual(testNow)
	states := make(chan entity.State, 1)
	out := &countdowns{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// Act
	go func() {
		done <- NewProjector(totpSnapshot("a", 10)).Run(ctx, clk, states, out.emit)
	}()

	// Assert
	eventually(t, "ticker", func() bool { return clk.Tickers() == 1 })
	if got := out.all(); len(got) != 1 || got[0].RemainingSeconds != 10 {
		t.Fatalf("initial emits = %+v", got)
	}

	clk.Advance(time.Second)
	eventually(t, "first tick", func() bool { return out.last().RemainingSeconds == 9 })
	clk.Advance(time.Second)
	eventually(t, "second tick", func() bool { return out.last().RemainingSeconds == 8 })

	states <- stateWith(totpSnapshot("a", 25))
	eventually(t, "reseed", func() bool { return out.last().RemainingSeconds == 25 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v, want nil on cancel", err)
	}
	if n := clk.Tickers(); n != 0 {
		t.Errorf("Tickers() = %d after Run returned, want 0", n)
	}
}

func TestProjectorRunCounterBasedHasNoTicker(t *testing.T) {
	clk := clock.NewManual(testNow)
	states := make(chan entity.State)
	out := &countdowns{}
	hotp := entity.AccountSnapshot{ID: "h", Code: "287082", Type: entity.AccountTypeHOTP}
	done := make(chan error, 1)

	go func() {
		done <- NewProjector(hotp).Run(context.Background(), clk, states, out.emit)
	}()

	eventually(t, "initial emit", func() bool { return len(out.all()) == 1 })
	if n := clk.Tickers(); n != 0 {
		t.Errorf("Tickers() = %d for a counter-based account, want 0", n)
	}

	// a fresh state switching the account to time-bound starts the ticker
	states <- stateWith(totpSnapshot("h", 30))
	eventually(t, "ticker started", func() bool { return clk.Tickers() == 1 })

	close(states)
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v, want nil when states closes", err)
	}
	if n := clk.Tickers(); n != 0 {
		t.Errorf("Tickers() = %d, want 0", n)
	}
}

func TestProjectorRunAccountRemoved(t *testing.T) {
	clk := clock.NewManual(testNow)
	states := make(chan entity.State, 1)
	states <- stateWith(totpSnapshot("other", 10))

	err := NewProjector(totpSnapshot("a", 10)).Run(context.Background(), clk, states, func(entity.Countdown) {})

	if !errors.Is(err, entity.ErrAccountNotFound) {
		t.Errorf("Run() error = %v, want ErrAccountNotFound", err)
	}
	if n := clk.Tickers(); n != 0 {
		t.Errorf("Tickers() = %d, want 0", n)
	}
}

func TestWatchCountdown(t *testing.T) {
	// Arrange
	uc, clk := newTestUsecase(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := uc.Apply(ctx, payload(true, with(account("a"), "remainingSeconds", 12))); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	out := &countdowns{}
	done := make(chan error, 1)

	// Act
	go func() { done <- uc.WatchCountdown(ctx, "a", out.emit) }()

	// Assert
	eventually(t, "seeded emit", func() bool { return out.last().RemainingSeconds == 12 })
	eventually(t, "ticker", func() bool { return clk.Tickers() == 1 })
	clk.Advance(time.Second)
	eventually(t, "tick", func() bool { return out.last().RemainingSeconds == 11 })

	if _, err := uc.Apply(ctx, payload(true, account("b"))); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := <-done; !errors.Is(err, entity.ErrAccountNotFound) {
		t.Errorf("WatchCountdown() error = %v, want ErrAccountNotFound", err)
	}
	eventually(t, "unsubscribed", func() bool { return uc.Subscribers() == 0 })
}

func TestWatchCountdownUnknownAccount(t *testing.T) {
	uc, _ := newTestUsecase(t)

	err := uc.WatchCountdown(context.Background(), "missing", func(entity.Countdown) {
		t.Error("emit called for a missing account")
	})

	if !errors.Is(err, entity.ErrAccountNotFound) {
		t.Errorf("WatchCountdown() error = %v, want ErrAccountNotFound", err)
	}
}

func TestAccount(t *testing.T) {
	uc, _ := newTestUsecase(t)
	if _, err := uc.Apply(context.Background(), payload(true, account("a"))); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got, err := uc.Account("a")
	if err != nil || got.ID != "a" || got.Period != 30 {
		t.Errorf("Account(a) = %+v, %v", got, err)
	}
	if _, err := uc.Account("nope"); !errors.Is(err, entity.ErrAccountNotFound) {
		t.Errorf("Account(nope) error = %v", err)
	}
}
