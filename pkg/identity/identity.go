// Package identity normalizes the contact identifiers collected at
// registration and submission time: email addresses used as login names and
// phone numbers used as SMS destinations.
package identity

import (
	"net/mail"
	"strings"
	"unicode"
)

// DefaultCountryCode is prepended to national-format numbers when the caller
// does not configure one.
const DefaultCountryCode = "91"

// NormalizeEmail lowercases and trims an email address. The identity service
// treats addresses case-insensitively, so every lookup goes through here.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// ValidEmail reports whether email is a single bare address (no display name).
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".")
}

// NormalizePhone strips a phone number down to digits and applies the
// country code to 10-digit national numbers. A leading trunk "0" on an
// 11-digit number is dropped first.
func NormalizePhone(phone, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var digits strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	result := digits.String()

	if len(result) == 11 && result[0] == '0' {
		result = result[1:]
	}
	if len(result) == 10 {
		result = countryCode + result
	}
	return result
}

// E164 returns phone in E.164 form ("+<digits>"), or "" when the number has
// too few digits to be dialable.
func E164(phone, countryCode string) string {
	n := NormalizePhone(phone, countryCode)
	if len(n) < 8 || len(n) > 15 {
		return ""
	}
	return "+" + n
}
