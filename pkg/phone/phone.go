// Package phone normalizes dialable phone numbers to E.164.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalid is returned when a number cannot be normalized to E.164.
var ErrInvalid = errors.New("invalid phone number")

// e164 is the canonical external format.
var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Normalize converts raw user/CRM input to E.164. Punctuation and spacing
// are stripped. Numbers without a leading + are assumed North American:
// 10 digits get +1, 11 digits starting with 1 get +. Normalize is
// idempotent over its own output.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalid
	}

	var digits strings.Builder
	plus := false
	for i, r := range trimmed {
		switch {
		case r == '+' && i == 0:
			plus = true
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// punctuation, skip
		default:
			return "", ErrInvalid
		}
	}

	d := digits.String()
	var candidate string
	switch {
	case plus:
		candidate = "+" + d
	case len(d) == 10:
		candidate = "+1" + d
	case len(d) == 11 && d[0] == '1':
		candidate = "+" + d
	default:
		return "", ErrInvalid
	}

	if !e164.MatchString(candidate) {
		return "", ErrInvalid
	}
	return candidate, nil
}

// Valid reports whether s is already canonical E.164.
func Valid(s string) bool {
	return e164.MatchString(s)
}
