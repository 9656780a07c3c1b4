package inbound

import (
	"errors"
	"strings"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
	"github.com/shandysiswandi/watchsync/internal/pkg/goerror"
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc        uc
	observers *observers
}

// GetState returns the authoritative companion state.
func (h *HTTPEndpoint) GetState(r *router.Request) (any, error) {
	return toStateResponse(h.uc.State()), nil
}

// GetAccount returns one account of the current state.
func (h *HTTPEndpoint) GetAccount(r *router.Request) (any, error) {
	account, err := h.uc.Account(strings.TrimSpace(r.GetParam("id")))
	if errors.Is(err, entity.ErrAccountNotFound) {
		return nil, goerror.NewBusiness("Account not found", goerror.CodeNotFound)
	}
	if err != nil {
		return nil, goerror.NewServer(err)
	}

	return toAccountResponse(account), nil
}
