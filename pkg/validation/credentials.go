package validation

import (
	"regexp"
	"strings"
)

// PasswordSpecialChars is the set of characters that satisfy the special
// character rule of the password policy.
const PasswordSpecialChars = "!@#$%^&*"

// MinPasswordLength is the minimum accepted password length in bytes.
const MinPasswordLength = 8

// PasswordPolicy describes the password rules in user-facing terms.
const PasswordPolicy = "Password should be at least 8 characters long and contain at least one uppercase letter, " +
	"one lowercase letter, one number and one special character (" + PasswordSpecialChars + ")"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail reports whether s looks like local@domain.tld.
// Only the syntax is checked; the domain is never resolved.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeEmail returns the canonical form used for storage and lookups.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidatePassword reports whether s satisfies the password policy.
func ValidatePassword(s string) bool {
	return len(PasswordViolations(s)) == 0
}

// PasswordViolations lists every rule s breaks. An empty result means the
// password is acceptable.
func PasswordViolations(s string) []string {
	var violations []string
	if len(s) < MinPasswordLength {
		violations = append(violations, "at least 8 characters")
	}
	if !strings.ContainsFunc(s, isASCIIDigit) {
		violations = append(violations, "a number")
	}
	if !strings.ContainsFunc(s, isASCIIUpper) {
		violations = append(violations, "an uppercase letter")
	}
	if !strings.ContainsFunc(s, isASCIILower) {
		violations = append(violations, "a lowercase letter")
	}
	if !strings.ContainsAny(s, PasswordSpecialChars) {
		violations = append(violations, "a special character ("+PasswordSpecialChars+")")
	}
	return violations
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
