package utils

import (
	"regexp"
	"strings"
)

// MinPasswordLength is the minimum accepted password length for new accounts.
const MinPasswordLength = 6

// MaxTitleLength bounds item titles; longer titles are rejected rather than truncated.
const MaxTitleLength = 256

// emailPattern is deliberately loose: one "@", a non-empty local part and a dotted domain.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates that email looks like an address.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(NormalizeEmail(email)) {
		return ErrInvalidEmail(email)
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword(MinPasswordLength)
	}
	return nil
}

// ValidateTitle validates that an item title is present and not too long.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ErrValidation("title is required")
	}
	if len(trimmed) > MaxTitleLength {
		return ErrValidation("title is too long")
	}
	return nil
}
