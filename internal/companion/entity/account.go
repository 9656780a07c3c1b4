package entity

import (
	"unicode"
	"unicode/utf8"
)

type AccountType string

const (
	AccountTypeTOTP  AccountType = "totp"
	AccountTypeHOTP  AccountType = "hotp"
	AccountTypeSteam AccountType = "steam"
)

func (t AccountType) String() string {
	return string(t)
}

// AccountSnapshot is one account as last computed by the primary.
type AccountSnapshot struct {
	ID               string      `json:"id"`
	Issuer           string      `json:"issuer"`
	Name             string      `json:"name"`
	Code             string      `json:"code"`
	RemainingSeconds int         `json:"remainingSeconds" validate:"countdown=Period"`
	Period           int         `json:"period"`
	Type             AccountType `json:"type" validate:"oneof=totp hotp steam"`
	Progress         float64     `json:"progress" validate:"ratio"`
}

// IsCounterBased reports whether codes advance by counter instead of time.
// Countdown fields of such accounts carry no meaning.
func (a AccountSnapshot) IsCounterBased() bool {
	return a.Type == AccountTypeHOTP
}

// IsAlternateFormat reports whether the code uses the alternate display format.
func (a AccountSnapshot) IsAlternateFormat() bool {
	return a.Type == AccountTypeSteam
}

func (a AccountSnapshot) IsTimeBound() bool {
	return !a.IsCounterBased()
}

// Initials is the upper-cased first letter of the issuer.
func (a AccountSnapshot) Initials() string {
	r, size := utf8.DecodeRuneInString(a.Issuer)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}
