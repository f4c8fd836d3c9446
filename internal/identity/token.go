// Package identity resolves the current user from the stored API token and
// broadcasts login and logout.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "inbox"

// Claims is the JWT payload carried by API tokens.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the notification owner the token acts for.
	UserID string `json:"user_id"`
}

// User returns UserID, falling back to the standard subject claim.
func (c *Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// ErrNoSubject is returned for tokens that name no user.
var ErrNoSubject = errors.New("token has no user_id or sub claim")

// IssueToken signs an HS256 token for userID. A zero ttl issues a token
// without expiry.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: userID,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks an HS256 token's signature and expiry and returns its
// claims.
func VerifyToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("verifying token: invalid")
	}
	if claims.User() == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

// UserIDFromToken reads the user from a token without verifying it. The
// client only needs to know who it is; the server does the verifying.
func UserIDFromToken(token string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	if claims.User() == "" {
		return "", ErrNoSubject
	}
	return claims.User(), nil
}
