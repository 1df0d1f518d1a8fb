// Package phone normalizes phone numbers into the canonical contact key.
package phone

import (
	"strings"
	"unicode"
)

// Normalize strips every non-digit and drops a leading US country code, so
// "908-244-8429", "(908) 244 8429" and "+19082448429" all yield "9082448429".
// Numbers that are not 10 or 11 digits are returned digits-only, unchanged otherwise.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

// E164 formats a number for carrier APIs. Canonical 10-digit keys get +1.
func E164(raw string) string {
	digits := Normalize(raw)
	if digits == "" {
		return ""
	}
	if len(digits) == 10 {
		return "+1" + digits
	}
	return "+" + digits
}

// Valid reports whether the number normalizes to a 10-digit US key.
func Valid(raw string) bool {
	return len(Normalize(raw)) == 10
}
