package strcase

import (
	"strings"
	"unicode"
)

// ToLowerSnake converts s to snake_case. Word boundaries are case changes
// (accountID, HTTPServer) and runs of spaces, hyphens or underscores; other
// characters are kept as they are.
func ToLowerSnake(s string) string {
	runes := []rune(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(runes) + 4)

	pending := false
	for i, r := range runes {
		if r == ' ' || r == '-' || r == '_' {
			pending = b.Len() > 0
			continue
		}

		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				pending = true
			}
		}

		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
