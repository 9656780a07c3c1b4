package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
	"github.com/shandysiswandi/watchsync/internal/pkg/valueobject"
	"github.com/shandysiswandi/watchsync/internal/shared/event"
)

// Receive applies a payload from any delivery channel. Rejections are logged.
func (s *Usecase) Receive(ctx context.Context, delivery event.Delivery, payload map[string]any) {
	if _, err := s.Apply(ctx, payload); err != nil {
		slog.WarnContext(ctx, "sync context rejected", "delivery", delivery.String(), "error", err)
		return
	}
	slog.DebugContext(ctx, "sync context applied", "delivery", delivery.String())
}

// Apply replaces the authoritative state with payload. A payload without a
// boolean isAuthenticated is rejected whole; malformed account entries are
// dropped one by one and the rest applied in order.
func (s *Usecase) Apply(ctx context.Context, payload map[string]any) (entity.State, error) {
	ctx, span := s.startSpan(ctx, "Apply")
	defer span.End()

	obj := valueobject.JSONMap(payload)

	isAuthenticated, ok := obj.LookupBool("isAuthenticated")
	if !ok {
		s.rejected.Add(ctx, 1)
		return s.State(), fmt.Errorf("%w: isAuthenticated missing or not a bool", entity.ErrPayloadMalformed)
	}

	rawAccounts, ok := obj.LookupArray("accounts")
	if !ok && obj.Has("accounts") {
		slog.InfoContext(ctx, "accounts is not an array, treating as empty")
	}

	accounts := make([]entity.AccountSnapshot, 0, len(rawAccounts))
	for i, raw := range rawAccounts {
		account, err := s.decodeAccount(raw)
		if err != nil {
			s.droppedEntries.Add(ctx, 1)
			slog.InfoContext(ctx, "dropping malformed account entry", "index", i, "reason", err.Error())
			continue
		}
		accounts = append(accounts, account)
	}

	unique := lo.UniqBy(accounts, func(a entity.AccountSnapshot) string { return a.ID })
	if dropped := len(accounts) - len(unique); dropped > 0 {
		s.droppedEntries.Add(ctx, int64(dropped))
		slog.InfoContext(ctx, "dropping duplicate account ids", "count", dropped)
	}

	s.mu.Lock()
	now := s.clock.Now()
	s.state = entity.State{
		Context: entity.SyncContext{
			IsAuthenticated: isAuthenticated,
			Accounts:        unique,
		},
		LastUpdated: &now,
		Revision:    s.state.Revision + 1,
	}
	applied := s.state.Clone()
	s.publish(applied)
	s.mu.Unlock()

	s.applied.Add(ctx, 1)
	return applied, nil
}

var errNotObject = errors.New("entry is not an object")

func (s *Usecase) decodeAccount(raw any) (entity.AccountSnapshot, error) {
	obj, ok := valueobject.AsJSONMap(raw)
	if !ok {
		return entity.AccountSnapshot{}, fmt.Errorf("%w: %w", entity.ErrAccountMalformed, errNotObject)
	}

	var (
		account entity.AccountSnapshot
		missing []string
		str     = func(key string, dst *string) {
			if v, ok := obj.LookupString(key); ok {
				*dst = v
			} else {
				missing = append(missing, key)
			}
		}
	)

	str("id", &account.ID)
	str("issuer", &account.Issuer)
	str("name", &account.Name)
	str("code", &account.Code)

	var kind string
	str("type", &kind)
	account.Type = entity.AccountType(kind)

	if v, ok := obj.LookupInt("remainingSeconds"); ok {
		account.RemainingSeconds = v
	} else {
		missing = append(missing, "remainingSeconds")
	}
	if v, ok := obj.LookupInt("period"); ok {
		account.Period = v
	} else {
		missing = append(missing, "period")
	}
	if v, ok := obj.LookupFloat("progress"); ok {
		account.Progress = v
	} else {
		missing = append(missing, "progress")
	}

	if len(missing) > 0 {
		return entity.AccountSnapshot{}, fmt.Errorf("%w: missing or mistyped %v", entity.ErrAccountMalformed, missing)
	}

	if err := s.validator.Validate(account); err != nil {
		return entity.AccountSnapshot{}, fmt.Errorf("%w: %w", entity.ErrAccountMalformed, err)
	}

	return account, nil
}
