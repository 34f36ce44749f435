package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(v string) *string { return &v }

func seedAccount(t *testing.T, s *Store, email string) domain.Account {
	t.Helper()

	a := domain.Account{
		ID:           idx.New().String(),
		Email:        strPtr(email),
		PasswordHash: strPtr("$argon2id$fake"),
	}
	require.NoError(t, s.Accounts().CreateAccount(context.Background(), a))

	got, err := s.Accounts().GetAccountByEmail(context.Background(), email)
	require.NoError(t, err)
	return got
}

func TestAccountsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "alice@example.com")
	require.Equal(t, "alice@example.com", *a.Email)
	require.False(t, a.EmailVerified)
	require.EqualValues(t, 0, a.TokenVersion)

	byID, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, byID.ID)

	_, err = s.Accounts().GetAccountByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "bob@example.com")

	err := s.Accounts().CreateAccount(ctx, domain.Account{
		ID:    idx.New().String(),
		Email: strPtr("bob@example.com"),
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestAccountByPhone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Accounts().CreateAccount(ctx, domain.Account{
		ID:          idx.New().String(),
		Phone:       strPtr("5551234"),
		CountryCode: strPtr("+61"),
	})
	require.NoError(t, err)

	got, err := s.Accounts().GetAccountByPhone(ctx, "+61", "5551234")
	require.NoError(t, err)
	require.Equal(t, "5551234", *got.Phone)

	// Same national number under a different country code is a different
	// identity.
	_, err = s.Accounts().GetAccountByPhone(ctx, "+1", "5551234")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementTokenVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "carol@example.com")

	v, err := s.Accounts().IncrementTokenVersion(ctx, a.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)

	v, err = s.Accounts().IncrementTokenVersion(ctx, a.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, got.TokenVersion)

	_, err = s.Accounts().IncrementTokenVersion(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPendingEmailCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "old@example.com")

	// Commit with nothing staged is a no-op failure.
	err := s.Accounts().CommitPendingEmail(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Accounts().StagePendingEmail(ctx, a.ID, "new@example.com"))

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "old@example.com", *got.Email)
	require.Equal(t, "new@example.com", *got.PendingEmail)

	require.NoError(t, s.Accounts().CommitPendingEmail(ctx, a.ID))

	got, err = s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", *got.Email)
	require.Nil(t, got.PendingEmail)
	require.True(t, got.EmailVerified)
}

func TestPendingPhoneCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "dave@example.com")

	require.NoError(t, s.Accounts().StagePendingPhone(ctx, a.ID, "+61", "5559876"))
	require.NoError(t, s.Accounts().CommitPendingPhone(ctx, a.ID))

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "5559876", *got.Phone)
	require.Equal(t, "+61", *got.CountryCode)
	require.True(t, got.PhoneVerified)
	require.Nil(t, got.PendingPhone)
}

func TestTwoFAColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "erin@example.com")

	// Enable without a staged method must fail.
	require.ErrorIs(t, s.Accounts().EnableTwoFA(ctx, a.ID), store.ErrNotFound)

	require.NoError(t, s.Accounts().SetTwoFAPending(ctx, a.ID, domain.TwoFAMethodTOTP, strPtr("JBSWY3DP")))
	require.NoError(t, s.Accounts().EnableTwoFA(ctx, a.ID))

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TwoFAEnabled)
	require.Equal(t, domain.TwoFAMethodTOTP, *got.TwoFAMethod)
	require.Equal(t, "JBSWY3DP", *got.TwoFASecret)

	require.NoError(t, s.Accounts().DisableTwoFA(ctx, a.ID))

	got, err = s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, got.TwoFAEnabled)
	require.Nil(t, got.TwoFAMethod)
	require.Nil(t, got.TwoFASecret)
}

func TestLoginAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "frank@example.com")

	for i := 1; i <= 3; i++ {
		n, err := s.Accounts().IncrementLoginAttempts(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	require.NoError(t, s.Accounts().ResetLoginAttempts(ctx, a.ID))

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, got.LoginAttempts)
}

func TestChallengeSupersede(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := domain.Challenge{
		ID:         idx.New().String(),
		Identifier: "alice@example.com",
		Purpose:    domain.PurposeEmailVerify,
		CodeHash:   "hash-1",
		ExpiresAt:  time.Now().UTC().Add(10 * time.Minute),
	}
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, first))

	second := first
	second.ID = idx.New().String()
	second.CodeHash = "hash-2"
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, second))

	got, err := s.Challenges().GetChallenge(ctx, "alice@example.com", domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
	require.Equal(t, "hash-2", got.CodeHash)
	require.Zero(t, got.Attempts)

	// Old challenge id is gone entirely.
	_, err = s.Challenges().IncrementChallengeAttempts(ctx, first.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengePurposesIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	verify := domain.Challenge{
		ID:         idx.New().String(),
		Identifier: "alice@example.com",
		Purpose:    domain.PurposeEmailVerify,
		CodeHash:   "hash-v",
		ExpiresAt:  time.Now().UTC().Add(10 * time.Minute),
	}
	reset := verify
	reset.ID = idx.New().String()
	reset.Purpose = domain.PurposePasswordReset
	reset.CodeHash = "hash-r"

	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, verify))
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, reset))

	got, err := s.Challenges().GetChallenge(ctx, "alice@example.com", domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.Equal(t, "hash-v", got.CodeHash)

	got, err = s.Challenges().GetChallenge(ctx, "alice@example.com", domain.PurposePasswordReset)
	require.NoError(t, err)
	require.Equal(t, "hash-r", got.CodeHash)
}

func TestConsumeChallengeAtMostOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := domain.Challenge{
		ID:         idx.New().String(),
		Identifier: "alice@example.com",
		Purpose:    domain.PurposeEmailVerify,
		CodeHash:   "hash",
		ExpiresAt:  time.Now().UTC().Add(10 * time.Minute),
	}
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, c))

	now := time.Now().UTC()
	require.NoError(t, s.Challenges().ConsumeChallenge(ctx, c.ID, now))
	require.ErrorIs(t, s.Challenges().ConsumeChallenge(ctx, c.ID, now), store.ErrAlreadyConsumed)

	got, err := s.Challenges().GetChallenge(ctx, "alice@example.com", domain.PurposeEmailVerify)
	require.NoError(t, err)
	require.NotNil(t, got.ConsumedAt)
	require.False(t, got.Active(now))
}

func TestOTPRequestWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, at := range []time.Time{
		now.Add(-10 * time.Minute), // outside window
		now.Add(-3 * time.Minute),
		now.Add(-1 * time.Minute),
	} {
		require.NoError(t, s.Challenges().RecordOTPRequest(ctx, "alice@example.com", at))
	}
	require.NoError(t, s.Challenges().RecordOTPRequest(ctx, "other@example.com", now))

	n, err := s.Challenges().CountOTPRequestsSince(ctx, "alice@example.com", now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestDeleteExpiredChallenges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()

	expired := domain.Challenge{
		ID:         idx.New().String(),
		Identifier: "stale@example.com",
		Purpose:    domain.PurposeEmailVerify,
		CodeHash:   "hash",
		ExpiresAt:  now.Add(-time.Minute),
	}
	live := domain.Challenge{
		ID:         idx.New().String(),
		Identifier: "live@example.com",
		Purpose:    domain.PurposeEmailVerify,
		CodeHash:   "hash",
		ExpiresAt:  now.Add(time.Hour),
	}
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, expired))
	require.NoError(t, s.Challenges().ReplaceChallenge(ctx, live))

	require.NoError(t, s.Challenges().DeleteExpiredChallenges(ctx, now))

	_, err := s.Challenges().GetChallenge(ctx, "stale@example.com", domain.PurposeEmailVerify)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Challenges().GetChallenge(ctx, "live@example.com", domain.PurposeEmailVerify)
	require.NoError(t, err)
}

func TestTwoFALoginLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "grace@example.com")

	c := domain.TwoFAChallenge{
		ID:        idx.New().String(),
		AccountID: a.ID,
		Method:    domain.TwoFAMethodEmail,
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	}
	require.NoError(t, s.TwoFALogins().CreateTwoFALogin(ctx, c))

	got, err := s.TwoFALogins().GetTwoFALogin(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.AccountID)
	require.Equal(t, domain.TwoFAMethodEmail, got.Method)

	n, err := s.TwoFALogins().IncrementTwoFALoginAttempts(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, s.TwoFALogins().DeleteTwoFALogin(ctx, c.ID))
	_, err = s.TwoFALogins().GetTwoFALogin(ctx, c.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTwoFALoginExpiryHidden(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "henry@example.com")

	c := domain.TwoFAChallenge{
		ID:        idx.New().String(),
		AccountID: a.ID,
		Method:    domain.TwoFAMethodSMS,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, s.TwoFALogins().CreateTwoFALogin(ctx, c))

	_, err := s.TwoFALogins().GetTwoFALogin(ctx, c.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.TwoFALogins().DeleteExpiredTwoFALogins(ctx))
}

func TestWithTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "ivy@example.com")

	wantErr := store.ErrAlreadyConsumed
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Accounts().IncrementTokenVersion(ctx, a.ID); err != nil {
			return err
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.TokenVersion)
}

func TestWithTxCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "jack@example.com")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().RecordOTPRequest(ctx, *a.Email, time.Now().UTC()); err != nil {
			return err
		}
		return tx.Challenges().ReplaceChallenge(ctx, domain.Challenge{
			ID:         idx.New().String(),
			Identifier: *a.Email,
			Purpose:    domain.PurposeEmailVerify,
			CodeHash:   "hash",
			ExpiresAt:  time.Now().UTC().Add(10 * time.Minute),
		})
	})
	require.NoError(t, err)

	n, err := s.Challenges().CountOTPRequestsSince(ctx, *a.Email, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
