// Package email provides small helpers for addressing people by name when
// only their email address is known.
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail guesses a display name from the local part of an
// address ("jean.dupont@x.fr" -> "Jean"). Falls back to "" when nothing
// name-like can be extracted.
func DeriveNameFromEmail(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return ""
	}
	return capitalize(parts[0])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
