package inbound

import (
	"time"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
)

type AccountResponse struct {
	ID               string  `json:"id"`
	Issuer           string  `json:"issuer"`
	Name             string  `json:"name"`
	Code             string  `json:"code"`
	RemainingSeconds int     `json:"remainingSeconds"`
	Period           int     `json:"period"`
	Type             string  `json:"type"`
	Progress         float64 `json:"progress"`
	Initials         string  `json:"initials"`
	CounterBased     bool    `json:"counterBased"`
	AlternateFormat  bool    `json:"alternateFormat"`
}

type StateResponse struct {
	Accounts        []AccountResponse `json:"accounts"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	LastUpdated     *time.Time        `json:"lastUpdated"`
	Revision        uint64            `json:"revision"`
	View            string            `json:"view"`
}

type GoneResponse struct {
	ID string `json:"id"`
}

func toAccountResponse(a entity.AccountSnapshot) AccountResponse {
	return AccountResponse{
		ID:               a.ID,
		Issuer:           a.Issuer,
		Name:             a.Name,
		Code:             a.Code,
		RemainingSeconds: a.RemainingSeconds,
		Period:           a.Period,
		Type:             a.Type.String(),
		Progress:         a.Progress,
		Initials:         a.Initials(),
		CounterBased:     a.IsCounterBased(),
		AlternateFormat:  a.IsAlternateFormat(),
	}
}

func toStateResponse(s entity.State) StateResponse {
	accounts := make([]AccountResponse, 0, len(s.Context.Accounts))
	for _, a := range s.Context.Accounts {
		accounts = append(accounts, toAccountResponse(a))
	}

	return StateResponse{
		Accounts:        accounts,
		IsAuthenticated: s.Context.IsAuthenticated,
		LastUpdated:     s.LastUpdated,
		Revision:        s.Revision,
		View:            string(s.View()),
	}
}
