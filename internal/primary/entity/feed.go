package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shandysiswandi/watchsync/internal/pkg/strcase"
)

var ErrFeedAccountInvalid = errors.New("feed account invalid")

// FeedAccount is a fixture account the development feed computes codes for.
type FeedAccount struct {
	ID     string
	Issuer string
	Name   string
	Secret string
	Type   string
	// Period applies to time-based accounts, Counter to counter-based ones.
	Period  uint
	Counter uint64
}

// ParseFeedAccount reads "type:issuer:name:secret[:period|counter]".
func ParseFeedAccount(s string) (FeedAccount, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 4 || len(parts) > 5 {
		return FeedAccount{}, fmt.Errorf("%w: %q needs type:issuer:name:secret", ErrFeedAccountInvalid, s)
	}

	a := FeedAccount{
		Type:   strings.ToLower(strings.TrimSpace(parts[0])),
		Issuer: strings.TrimSpace(parts[1]),
		Name:   strings.TrimSpace(parts[2]),
		Secret: strings.ToUpper(strings.TrimSpace(parts[3])),
	}
	if a.Issuer == "" || a.Secret == "" {
		return FeedAccount{}, fmt.Errorf("%w: %q has no issuer or secret", ErrFeedAccountInvalid, s)
	}
	a.ID = strcase.ToLowerSnake(a.Issuer + " " + a.Name)

	var extra uint64
	if len(parts) == 5 {
		n, err := strconv.ParseUint(strings.TrimSpace(parts[4]), 10, 32)
		if err != nil {
			return FeedAccount{}, fmt.Errorf("%w: %q: %w", ErrFeedAccountInvalid, s, err)
		}
		extra = n
	}

	switch a.Type {
	case "totp", "steam":
		a.Period = uint(extra)
	case "hotp":
		a.Counter = extra
	default:
		return FeedAccount{}, fmt.Errorf("%w: unknown type %q", ErrFeedAccountInvalid, a.Type)
	}

	return a, nil
}
