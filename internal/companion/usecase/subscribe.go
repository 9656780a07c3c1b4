package usecase

import (
	"context"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
)

type subscriber struct {
	ch chan entity.State
}

// Subscribe delivers the current state right away and then every applied
// state. A slow reader only misses intermediate states, never the latest.
// The channel is closed when ctx ends.
func (s *Usecase) Subscribe(ctx context.Context) <-chan entity.State {
	sub := &subscriber{ch: make(chan entity.State, 1)}

	s.mu.Lock()
	sub.ch <- s.state.Clone()
	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, sub)
		close(sub.ch)
		s.subMu.Unlock()
	}()

	return sub.ch
}

// Subscribers reports how many observers are attached.
func (s *Usecase) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// publish must be called with s.mu held so observers see states in order.
func (s *Usecase) publish(state entity.State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for sub := range s.subs {
		replaceLatest(sub.ch, state.Clone())
	}
}

func replaceLatest(ch chan entity.State, v entity.State) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
