package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed      = errors.New("jwtx: malformed token")
	ErrInvalidSig     = errors.New("jwtx: invalid signature")
	ErrExpired        = errors.New("jwtx: token expired")
	ErrNotYetValid    = errors.New("jwtx: token not yet valid")
	ErrIssuer         = errors.New("jwtx: issuer mismatch")
	ErrWrongTokenType = errors.New("jwtx: wrong token type")
)

// Keypair signs and verifies tokens with a single Ed25519 keypair. Keys are
// ephemeral: generated at startup and lost on restart, which implicitly
// invalidates every outstanding token. That matches the stateless-token
// design; nothing needs to survive a restart.
type Keypair struct {
	kid    string
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
}

// NewEphemeralKeypair generates a fresh Ed25519 keypair for the given issuer.
func NewEphemeralKeypair(issuer string) (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate ed25519 key: %w", err)
	}
	return &Keypair{
		kid:    NewJTI(),
		priv:   priv,
		pub:    pub,
		issuer: issuer,
	}, nil
}

// KID returns the key identifier placed into signed token headers.
func (k *Keypair) KID() string { return k.kid }

// Issuer returns the issuer claim this keypair signs and enforces.
func (k *Keypair) Issuer() string { return k.issuer }

// Sign turns claims into a signed compact JWT string.
func (k *Keypair) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = k.kid
	return t.SignedString(k.priv)
}

// Verify parses and validates a token, returning its claims. Signature,
// expiry, not-before and issuer are all enforced here; the token version
// comparison belongs to the caller because it needs the live account row.
func (k *Keypair) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return k.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(k.issuer),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, ErrNotYetValid
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return Claims{}, ErrIssuer
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}
	return claims, nil
}

// VerifyTyped is Verify plus a check that the token carries the expected
// "typ" claim.
func (k *Keypair) VerifyTyped(token, tokenType string) (Claims, error) {
	claims, err := k.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenType {
		return Claims{}, ErrWrongTokenType
	}
	return claims, nil
}
