package security

import (
	"strings"
	"testing"
	"time"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Str0ng!Pass" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !CheckPassword("Str0ng!Pass", hash) {
		t.Fatalf("expected password to match its hash")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestIssueAndParseAccessToken(t *testing.T) {
	signed, err := IssueAccessToken("secret", "user-1", "a@x.com", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, errParse := ParseAccessToken("secret", signed)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID() != "user-1" {
		t.Fatalf("expected subject user-1, got %q", claims.UserID())
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("expected email claim, got %q", claims.Email)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("expected access type, got %q", claims.TokenType)
	}
}

func TestParseAccessToken_RejectsRefreshToken(t *testing.T) {
	signed, err := IssueRefreshToken("secret", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, errParse := ParseAccessToken("secret", signed); errParse == nil {
		t.Fatalf("expected refresh token to be rejected as access token")
	}
}

func TestParseToken_Failures(t *testing.T) {
	signed, err := IssueAccessToken("secret", "user-1", "a@x.com", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, errParse := ParseToken("secret", signed); errParse == nil {
		t.Fatalf("expected expired token to fail")
	}

	signed, err = IssueAccessToken("secret", "user-1", "a@x.com", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, errParse := ParseToken("other-secret", signed); errParse == nil {
		t.Fatalf("expected wrong-secret token to fail")
	}
	if _, errParse := ParseToken("secret", "not-a-token"); errParse == nil {
		t.Fatalf("expected malformed token to fail")
	}
}

func TestValidatePasswordStrength_CollectsAllViolations(t *testing.T) {
	violations := ValidatePasswordStrength("short", "", "")
	if len(violations) < 3 {
		t.Fatalf("expected multiple violations, got %v", violations)
	}

	if violations := ValidatePasswordStrength("Str0ng!Pass", "Ann Lee", "annlee"); len(violations) != 0 {
		t.Fatalf("expected valid password, got %v", violations)
	}
}

func TestValidatePasswordStrength_RepeatedDigits(t *testing.T) {
	violations := ValidatePasswordStrength("Aa!x111yz", "", "")
	found := false
	for _, v := range violations {
		if strings.Contains(v, "repeated") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected repeated digit violation, got %v", violations)
	}

	if violations := ValidatePasswordStrength("Aa!x121yz", "", ""); len(violations) != 0 {
		t.Fatalf("expected no violations for non-repeated digits, got %v", violations)
	}
}

func TestValidatePasswordStrength_NameAndUsername(t *testing.T) {
	violations := ValidatePasswordStrength("AnnLee!123x", "Ann Lee", "annlee")
	found := false
	for _, v := range violations {
		if strings.Contains(v, "username") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected username violation, got %v", violations)
	}
}
