package pii

import (
	"strings"
	"unicode"
)

func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// maskCard keeps the first and last four digits.
func maskCard(s string) string {
	digits := digitsOf(s)
	if len(digits) < 12 {
		return "****"
	}
	return digits[:4] + strings.Repeat("*", len(digits)-8) + digits[len(digits)-4:]
}

// maskPhone keeps the first four and last two digits.
func maskPhone(s string) string {
	digits := digitsOf(s)
	if len(digits) < 8 {
		return "****"
	}
	return digits[:4] + strings.Repeat("*", len(digits)-6) + digits[len(digits)-2:]
}

func maskSSN(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return "***-**-****"
	}
	return parts[0] + "-**-" + parts[2]
}

func maskEmail(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok {
		return strings.Repeat("*", len(s))
	}
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + "@" + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + "@" + domain
}

func maskAccount(s string) string {
	if len(s) > 6 {
		return s[:4] + strings.Repeat("*", len(s)-6) + s[len(s)-2:]
	}
	return s[:2] + "****"
}
