package strcase

import "testing"

func TestToLowerSnake(t *testing.T) {
	tests := map[string]string{
		"":                      "",
		"accountID":             "account_id",
		"HTTPServer":            "http_server",
		"RemainingSeconds":      "remaining_seconds",
		"GitHub me@example.com": "git_hub_me@example.com",
		"  Steam -- Main  ":     "steam_main",
		"already_snake":         "already_snake",
	}
	for in, want := range tests {
		if got := ToLowerSnake(in); got != want {
			t.Errorf("ToLowerSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
