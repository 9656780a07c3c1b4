package entity

import (
	"errors"
	"testing"
)

func TestParseFeedAccount(t *testing.T) {
	tests := []struct {
		in      string
		want    FeedAccount
		wantErr bool
	}{
		{
			in:   "totp:GitHub:me@example.com:gezdgnbvgy3tqojq",
			want: FeedAccount{ID: "git_hub_me@example.com", Issuer: "GitHub", Name: "me@example.com", Secret: "GEZDGNBVGY3TQOJQ", Type: "totp"},
		},
		{
			in:   " steam : Steam : player : ABCDEFGH : 60 ",
			want: FeedAccount{ID: "steam_player", Issuer: "Steam", Name: "player", Secret: "ABCDEFGH", Type: "steam", Period: 60},
		},
		{
			in:   "HOTP:Bank:card:ABCDEFGH:7",
			want: FeedAccount{ID: "bank_card", Issuer: "Bank", Name: "card", Secret: "ABCDEFGH", Type: "hotp", Counter: 7},
		},
		{in: "totp:GitHub:me", wantErr: true},
		{in: "totp::me:SECRET", wantErr: true},
		{in: "push:GitHub:me:SECRET", wantErr: true},
		{in: "totp:GitHub:me:SECRET:soon", wantErr: true},
		{in: "totp:a:b:c:d:e", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFeedAccount(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrFeedAccountInvalid) {
					t.Errorf("ParseFeedAccount() error = %v, want ErrFeedAccountInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFeedAccount() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFeedAccount() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
