// Package jwtx signs and verifies the EdDSA JWTs used as access and refresh
// tokens. Both token kinds embed the owning account id and a snapshot of the
// account's token version; the version comparison at verify time is the
// entire revocation mechanism.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short-lived access tokens bound the window a stolen
// token is useful for; refresh tokens trade that off for user convenience.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token type values carried in the "typ" claim. Refresh tokens are never
// accepted where an access token is expected, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the claims embedded in both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims

	// TokenVersion is the account's token_version at issue time. A token is
	// only valid while this matches the live account row.
	TokenVersion int64 `json:"tkv"`

	// TokenType distinguishes access from refresh tokens.
	TokenType string `json:"typ"`
}

// NewClaims builds minimally-correct claims for the given account.
func NewClaims(accountID string, tokenVersion int64, tokenType, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TokenVersion: tokenVersion,
		TokenType:    tokenType,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
