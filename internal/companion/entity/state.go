package entity

import (
	"slices"
	"time"
)

// SyncContext is the full payload the primary sends. Account order is
// display order.
type SyncContext struct {
	IsAuthenticated bool              `json:"isAuthenticated"`
	Accounts        []AccountSnapshot `json:"accounts"`
}

// State is the authoritative companion state. Values are never mutated once
// published; every accepted payload produces a new State.
type State struct {
	Context     SyncContext
	LastUpdated *time.Time
	Revision    uint64
}

type View string

const (
	ViewLocked   View = "locked"
	ViewEmpty    View = "empty"
	ViewAccounts View = "accounts"
)

// View tells the presentation which screen the state calls for.
func (s State) View() View {
	switch {
	case !s.Context.IsAuthenticated:
		return ViewLocked
	case len(s.Context.Accounts) == 0:
		return ViewEmpty
	default:
		return ViewAccounts
	}
}

// Account finds the account with the given id.
func (s State) Account(id string) (AccountSnapshot, bool) {
	i := slices.IndexFunc(s.Context.Accounts, func(a AccountSnapshot) bool { return a.ID == id })
	if i < 0 {
		return AccountSnapshot{}, false
	}
	return s.Context.Accounts[i], true
}

// Clone returns a copy that shares nothing with s.
func (s State) Clone() State {
	out := State{
		Context: SyncContext{
			IsAuthenticated: s.Context.IsAuthenticated,
			Accounts:        slices.Clone(s.Context.Accounts),
		},
		Revision: s.Revision,
	}
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		out.LastUpdated = &t
	}
	return out
}
