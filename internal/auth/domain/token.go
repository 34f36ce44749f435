package domain

import "time"

// TokenPair is what a successful authentication returns: a short-lived
// access token and a longer-lived refresh token, both signed JWTs embedding
// the account id and its token version.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"`           // access token lifetime in seconds
}

// Principal is the authenticated identity resolved from an access token.
// It is passed explicitly into every use case; there is no ambient
// request-scoped user object.
type Principal struct {
	AccountID    string
	TokenVersion int64
}

// TwoFAChallenge is the pending second login step handed back when a
// password login hits a 2FA-enabled account. No tokens exist yet; the
// reference token must be redeemed together with a valid code.
type TwoFAChallenge struct {
	ID        string // opaque reference returned to the client
	AccountID string
	Method    TwoFAMethod
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginResult is either an issued token pair or a pending 2FA challenge.
type LoginResult struct {
	Tokens        *TokenPair
	TwoFARequired bool
	ChallengeRef  string
	Method        TwoFAMethod
}
