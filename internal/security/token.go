package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type discriminators.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims are the JWT claims carried by access and refresh tokens.
type TokenClaims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *TokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// IssueAccessToken signs a short-lived access token for a user.
func IssueAccessToken(secret, userID, email string, ttl time.Duration) (string, error) {
	return issueToken(secret, userID, email, TokenTypeAccess, ttl)
}

// IssueRefreshToken signs a long-lived refresh token for a user.
func IssueRefreshToken(secret, userID string, ttl time.Duration) (string, error) {
	return issueToken(secret, userID, "", TokenTypeRefresh, ttl)
}

func issueToken(secret, userID, email, tokenType string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("security: empty jwt secret")
	}
	now := time.Now().UTC()
	claims := TokenClaims{
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			// The token ID keeps every signed token distinct, even two
			// minted for the same user within the same second.
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseToken verifies a token's signature and expiry and returns its claims.
// Any failure means the caller must treat the bearer as unauthenticated.
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, errParse := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil {
		return nil, fmt.Errorf("security: parse token: %w", errParse)
	}
	if !token.Valid {
		return nil, fmt.Errorf("security: invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("security: token missing subject")
	}
	return claims, nil
}

// ParseAccessToken parses a token and rejects anything but an access token.
// Refresh tokens are never accepted on the Authorization header.
func ParseAccessToken(secret, tokenString string) (*TokenClaims, error) {
	claims, errParse := ParseToken(secret, tokenString)
	if errParse != nil {
		return nil, errParse
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("security: not an access token")
	}
	return claims, nil
}
