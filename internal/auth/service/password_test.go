package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/cryptox"
)

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")
	before := account.TokenVersion

	require.NoError(t, env.Password.ChangePassword(ctx, account.ID, "Test@1234", "NewPass@1234"))

	got, err := env.Store.Accounts().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, before+1, got.TokenVersion)
	require.NotNil(t, got.LastPasswordChangeAt)
	require.NoError(t, cryptox.VerifyPassword("NewPass@1234", *got.PasswordHash))
}

func TestChangePasswordRevokesOutstandingTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	pair, err := env.Tokens.Issue(account.ID, account.TokenVersion)
	require.NoError(t, err)

	require.NoError(t, env.Password.ChangePassword(ctx, account.ID, "Test@1234", "NewPass@1234"))

	_, err = env.Tokens.VerifyAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
	_, err = env.Tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestChangePasswordSameAsCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	err := env.Password.ChangePassword(ctx, account.ID, "Test@1234", "Test@1234")
	require.ErrorIs(t, err, ErrPasswordReused)

	got, err := env.Store.Accounts().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, account.TokenVersion, got.TokenVersion)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	err := env.Password.ChangePassword(ctx, account.ID, "WrongPass1", "NewPass@1234")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePasswordWeakReplacement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	err := env.Password.ChangePassword(ctx, account.ID, "Test@1234", "password123")
	require.ErrorIs(t, err, ErrWeakPassword)

	got, err := env.Store.Accounts().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, account.TokenVersion, got.TokenVersion)
	require.NoError(t, cryptox.VerifyPassword("Test@1234", *got.PasswordHash))
}

func TestForgotPasswordUnknownIdentifierMasked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.Password.ForgotPassword(ctx, ptr("nobody@example.com"), nil, nil)
	require.NoError(t, err)
	require.Empty(t, result.ChallengeID)

	_, err = env.Store.Challenges().GetChallenge(ctx, "nobody@example.com", domain.PurposePasswordReset)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Zero(t, env.Sender.count())
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	pair, err := env.Tokens.Issue(account.ID, account.TokenVersion)
	require.NoError(t, err)

	result, err := env.Password.ForgotPassword(ctx, ptr("alice@example.com"), nil, nil)
	require.NoError(t, err)
	require.True(t, result.Delivered)

	code := env.Sender.lastCode(t)
	require.NoError(t, env.Password.ResetPassword(ctx, ptr("alice@example.com"), nil, nil, code, "NewPass@1234"))

	// Old sessions are gone, the new password works.
	_, err = env.Tokens.VerifyAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	login, err := env.Accounts.Login(ctx, LoginInput{
		Email:    ptr("alice@example.com"),
		Password: "NewPass@1234",
	})
	require.NoError(t, err)
	require.NotNil(t, login.Tokens)
}

func TestResetPasswordWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "alice@example.com", "Test@1234")

	_, err := env.Password.ForgotPassword(ctx, ptr("alice@example.com"), nil, nil)
	require.NoError(t, err)

	err = env.Password.ResetPassword(ctx, ptr("alice@example.com"), nil, nil, "0000000", "NewPass@1234")
	require.ErrorIs(t, err, ErrOTPMismatch)
}

func TestResetPasswordUnknownIdentifier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.Password.ResetPassword(ctx, ptr("nobody@example.com"), nil, nil, "123456", "NewPass@1234")
	require.ErrorIs(t, err, ErrOTPNotFound)
}

func TestResetPasswordCodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "alice@example.com", "Test@1234")

	_, err := env.Password.ForgotPassword(ctx, ptr("alice@example.com"), nil, nil)
	require.NoError(t, err)
	code := env.Sender.lastCode(t)

	require.NoError(t, env.Password.ResetPassword(ctx, ptr("alice@example.com"), nil, nil, code, "NewPass@1234"))

	err = env.Password.ResetPassword(ctx, ptr("alice@example.com"), nil, nil, code, "Other@1234")
	require.ErrorIs(t, err, ErrOTPConsumed)
}

func TestResetPasswordLiftsLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.register(t, "alice@example.com", "Test@1234")

	for i := 0; i < MaxLoginAttempts; i++ {
		_, err := env.Accounts.Login(ctx, LoginInput{
			Email:    ptr("alice@example.com"),
			Password: "WrongPass1",
		})
		require.Error(t, err)
	}

	_, err := env.Accounts.Login(ctx, LoginInput{
		Email:    ptr("alice@example.com"),
		Password: "Test@1234",
	})
	require.ErrorIs(t, err, ErrAccountLocked)

	_, err = env.Password.ForgotPassword(ctx, ptr("alice@example.com"), nil, nil)
	require.NoError(t, err)
	code := env.Sender.lastCode(t)
	require.NoError(t, env.Password.ResetPassword(ctx, ptr("alice@example.com"), nil, nil, code, "NewPass@1234"))

	got, err := env.Store.Accounts().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Zero(t, got.LoginAttempts)

	login, err := env.Accounts.Login(ctx, LoginInput{
		Email:    ptr("alice@example.com"),
		Password: "NewPass@1234",
	})
	require.NoError(t, err)
	require.NotNil(t, login.Tokens)
}
