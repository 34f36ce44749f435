package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/authd/internal/auth/domain"
)

func TestGenerateAndValidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)
	require.True(t, result.Delivered)
	require.NotEmpty(t, result.ChallengeID)

	code := env.Sender.lastCode(t)
	require.NoError(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, code))
}

func TestValidateWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)

	// A 7-character guess can never collide with a generated code.
	require.ErrorIs(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, "0000000"), ErrOTPMismatch)

	// The real code still works after a failed guess.
	require.NoError(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, env.Sender.lastCode(t)))
}

func TestValidateAttemptCeiling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)

	for i := 0; i < MaxOTPAttempts-1; i++ {
		require.ErrorIs(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, "wrong1"), ErrOTPMismatch)
	}
	require.ErrorIs(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, "wrong1"), ErrTooManyAttempts)

	// Even the correct code is refused once the challenge is burned.
	require.ErrorIs(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, env.Sender.lastCode(t)), ErrTooManyAttempts)
}

func TestValidateExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)
	code := env.Sender.lastCode(t)

	env.expireChallenge(t, "alice@example.com", domain.PurposeEmailVerify)

	require.ErrorIs(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, code), ErrOTPExpired)
}

func TestValidateUnknownIdentifier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.ErrorIs(t, env.OTP.Validate(ctx, "nobody@example.com", domain.PurposeEmailVerify, "123456"), ErrOTPNotFound)
}

func TestValidateConsumedOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)
	code := env.Sender.lastCode(t)

	require.NoError(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, code))
	require.ErrorIs(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, code), ErrOTPConsumed)
}

func TestConcurrentValidateExactlyOneOk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)
	code := env.Sender.lastCode(t)

	const racers = 8
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, code)
		}(i)
	}
	wg.Wait()

	var oks, consumed int
	for _, err := range errs {
		switch {
		case err == nil:
			oks++
		case err == ErrOTPConsumed:
			consumed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, oks)
	require.Equal(t, racers-1, consumed)
}

func TestGenerateSupersedesPriorChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)
	oldCode := env.Sender.lastCode(t)

	// Codes are random, so regenerate on the rare collision with the old
	// code to keep the stale-code assertion unconditional.
	env.OTP.RequestLimit = 100
	newCode := oldCode
	for newCode == oldCode {
		_, err = env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
		require.NoError(t, err)
		newCode = env.Sender.lastCode(t)
	}

	require.ErrorIs(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, oldCode), ErrOTPMismatch)
	require.NoError(t, env.OTP.Validate(ctx, "alice@example.com", domain.PurposeEmailVerify, newCode))
}

func TestGenerateRateLimitExactBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < DefaultOTPRequestLimit; i++ {
		_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
		require.NoError(t, err)
	}

	_, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.ErrorIs(t, err, ErrTooManyRequests)

	// A different identifier is unaffected.
	_, err = env.OTP.GenerateAndSend(ctx, "bob@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "bob@example.com")
	require.NoError(t, err)
}

func TestDeliveryFailureKeepsChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.Sender.fail = true
	result, err := env.OTP.GenerateAndSend(ctx, "alice@example.com", domain.PurposeEmailVerify, domain.ChannelEmail, "alice@example.com")
	require.NoError(t, err)
	require.False(t, result.Delivered)

	// The challenge exists even though nothing was delivered.
	c, err := env.Store.Challenges().GetChallenge(ctx, "alice@example.com", domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.Equal(t, result.ChallengeID, c.ID)
}
