package validator

import (
	"errors"
	"testing"
)

type account struct {
	Kind             string  `validate:"oneof=totp hotp steam"`
	RemainingSeconds int     `validate:"countdown=Period"`
	Period           int     `validate:"-"`
	Progress         float64 `validate:"ratio"`
}

func (a account) IsCounterBased() bool { return a.Kind == "hotp" }

func TestV10ValidatorCountdownRules(t *testing.T) {
	v, err := NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}

	tests := []struct {
		name      string
		in        account
		wantField string
	}{
		{name: "valid totp", in: account{Kind: "totp", RemainingSeconds: 10, Period: 30, Progress: 0.33}},
		{name: "boundary remaining", in: account{Kind: "steam", RemainingSeconds: 30, Period: 30, Progress: 1}},
		{name: "zero remaining", in: account{Kind: "totp", RemainingSeconds: 0, Period: 30, Progress: 0}},
		{name: "hotp skips ranges", in: account{Kind: "hotp", RemainingSeconds: -1, Period: 0, Progress: 7}},
		{name: "negative remaining", in: account{Kind: "totp", RemainingSeconds: -1, Period: 30, Progress: 0.5}, wantField: "remaining_seconds"},
		{name: "remaining above period", in: account{Kind: "totp", RemainingSeconds: 31, Period: 30, Progress: 0.5}, wantField: "remaining_seconds"},
		{name: "zero period", in: account{Kind: "totp", RemainingSeconds: 0, Period: 0, Progress: 0}, wantField: "remaining_seconds"},
		{name: "progress above one", in: account{Kind: "totp", RemainingSeconds: 1, Period: 30, Progress: 1.01}, wantField: "progress"},
		{name: "unknown kind", in: account{Kind: "sms", RemainingSeconds: 1, Period: 30, Progress: 0.1}, wantField: "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var verr V10ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want V10ValidationError", err)
			}
			if _, ok := verr.Values()[tt.wantField]; !ok {
				t.Errorf("Validate() fields = %v, want %q", verr.Values(), tt.wantField)
			}
		})
	}
}
