// Package security provides password hashing, token signing, and
// password strength validation.
package security

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("security: hash password: %w", errHash)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Password strength rules.
const (
	passwordMinLength = 8
	passwordMaxLength = 100
	specialCharacters = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"
)

// Account lockout policy.
const (
	// MaxFailedLoginAttempts is the consecutive failure count that blocks an account.
	MaxFailedLoginAttempts = 5
	// LockoutMinutes is how long a blocked account stays blocked.
	LockoutMinutes = 15
)

// ValidatePasswordStrength checks a password against the strength rules and
// returns every violation rather than stopping at the first.
func ValidatePasswordStrength(password, name, username string) []string {
	var violations []string

	if len(password) < passwordMinLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters long", passwordMinLength))
	}
	if len(password) > passwordMaxLength {
		violations = append(violations, fmt.Sprintf("password must not exceed %d characters", passwordMaxLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(specialCharacters, r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain at least one number")
	}
	if !hasSpecial {
		violations = append(violations, "password must contain at least one special character")
	}

	if hasRepeatedDigits(password) {
		violations = append(violations, "password must not contain sequential repeated numbers")
	}

	if name != "" && strings.Contains(strings.ToLower(password), strings.ToLower(name)) {
		violations = append(violations, "password must not contain your name")
	}
	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		violations = append(violations, "password must not contain your username")
	}

	return violations
}

// hasRepeatedDigits reports whether the password contains the same digit
// three or more times in a row.
func hasRepeatedDigits(password string) bool {
	run := 0
	var last rune
	for _, r := range password {
		if r >= '0' && r <= '9' && r == last {
			run++
			if run >= 3 {
				return true
			}
			continue
		}
		if r >= '0' && r <= '9' {
			run = 1
		} else {
			run = 0
		}
		last = r
	}
	return false
}
