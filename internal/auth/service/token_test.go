package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/authd/pkg/jwtx"
)

func TestIssueAndVerifyAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	pair, err := env.Tokens.Issue(account.ID, account.TokenVersion)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(jwtx.DefaultAccessTokenTTL.Seconds()), pair.ExpiresIn)

	principal, err := env.Tokens.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.ID, principal.AccountID)
	require.Equal(t, account.TokenVersion, principal.TokenVersion)
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	pair, err := env.Tokens.Issue(account.ID, account.TokenVersion)
	require.NoError(t, err)

	_, err = env.Tokens.VerifyAccess(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrWrongTokenUse)

	_, err = env.Tokens.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestRefreshRotatesPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	pair, err := env.Tokens.Issue(account.ID, account.TokenVersion)
	require.NoError(t, err)

	rotated, err := env.Tokens.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)

	principal, err := env.Tokens.VerifyAccess(ctx, rotated.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.ID, principal.AccountID)
}

func TestInvalidateAllRevokesOutstandingTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	pair, err := env.Tokens.Issue(account.ID, account.TokenVersion)
	require.NoError(t, err)

	require.NoError(t, env.Tokens.InvalidateAll(ctx, account.ID))

	_, err = env.Tokens.VerifyAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = env.Tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestVerifyAccessDeletedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.Tokens.Issue("01JGONE0000000000000000000", 0)
	require.NoError(t, err)

	_, err = env.Tokens.VerifyAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestVerifyAccessGarbage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Tokens.VerifyAccess(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")
	now := time.Now().UTC()

	expired := func(tokenType string) string {
		token, err := env.Tokens.Keys.Sign(jwtx.NewClaims(
			account.ID, account.TokenVersion, tokenType,
			env.Tokens.Keys.Issuer(), -time.Minute, now,
		))
		require.NoError(t, err)
		return token
	}

	// Expiry is its own failure mode, distinct from a malformed token.
	_, err := env.Tokens.VerifyAccess(ctx, expired(jwtx.TokenTypeAccess))
	require.ErrorIs(t, err, ErrTokenExpired)
	require.NotErrorIs(t, err, ErrInvalidToken)

	_, err = env.Tokens.Refresh(ctx, expired(jwtx.TokenTypeRefresh))
	require.ErrorIs(t, err, ErrTokenExpired)
}
