package service

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/cryptox"
	"github.com/driftlock/authd/pkg/idx"
)

const (
	// TwoFALoginTTL is how long a pending second login step stays
	// redeemable.
	TwoFALoginTTL = 5 * time.Minute

	// MaxTwoFALoginAttempts burns the pending login after this many wrong
	// codes; the client has to start over with the password.
	MaxTwoFALoginAttempts = 5
)

// TwoFAService manages the second-factor lifecycle: Disabled ->
// SetupInitiated -> Enabled, plus the login-time challenge flow.
type TwoFAService struct {
	Store  store.Store
	OTP    *OTPEngine
	Issuer string // issuer label shown in authenticator apps
}

// Setup stages a second factor. The caller's password is re-verified so a
// hijacked session cannot silently enroll a factor, and both contact
// channels must already be verified so the account keeps a recovery path.
// Nothing is enabled until ConfirmSetup.
func (s *TwoFAService) Setup(ctx context.Context, accountID, password string, method domain.TwoFAMethod) (domain.TwoFASetup, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.TwoFASetup{}, err
	}

	if !account.HasPassword() {
		return domain.TwoFASetup{}, ErrNoPasswordSet
	}
	if cryptox.VerifyPassword(password, *account.PasswordHash) != nil {
		return domain.TwoFASetup{}, ErrInvalidCredentials
	}
	if !account.EmailVerified || !account.PhoneVerified {
		return domain.TwoFASetup{}, ErrNotVerified
	}

	switch method {
	case domain.TwoFAMethodTOTP:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: account.EmailIdentifier(),
			Period:      30,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return domain.TwoFASetup{}, err
		}
		secret := key.Secret()
		if err := s.Store.Accounts().SetTwoFAPending(ctx, accountID, method, &secret); err != nil {
			return domain.TwoFASetup{}, err
		}
		return domain.TwoFASetup{
			Method:     method,
			Secret:     secret,
			OtpauthURL: key.URL(),
		}, nil

	case domain.TwoFAMethodEmail:
		if err := s.Store.Accounts().SetTwoFAPending(ctx, accountID, method, nil); err != nil {
			return domain.TwoFASetup{}, err
		}
		result, err := s.OTP.GenerateAndSend(ctx, account.EmailIdentifier(), domain.PurposeTwoFASetup, domain.ChannelEmail, account.EmailIdentifier())
		if err != nil {
			return domain.TwoFASetup{}, err
		}
		return domain.TwoFASetup{Method: method, OTP: &result}, nil

	case domain.TwoFAMethodSMS:
		if err := s.Store.Accounts().SetTwoFAPending(ctx, accountID, method, nil); err != nil {
			return domain.TwoFASetup{}, err
		}
		result, err := s.OTP.GenerateAndSend(ctx, account.PhoneIdentifier(), domain.PurposeTwoFASetup, domain.ChannelSMS, account.PhoneIdentifier())
		if err != nil {
			return domain.TwoFASetup{}, err
		}
		return domain.TwoFASetup{Method: method, OTP: &result}, nil

	default:
		return domain.TwoFASetup{}, ErrTwoFANotConfigured
	}
}

// ConfirmSetup validates the proof code for the staged method and enables
// the second factor.
func (s *TwoFAService) ConfirmSetup(ctx context.Context, accountID, code string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.TwoFAMethod == nil {
		return ErrTwoFANotConfigured
	}

	if err := s.verifyCode(ctx, account, *account.TwoFAMethod, domain.PurposeTwoFASetup, code); err != nil {
		return err
	}
	return s.Store.Accounts().EnableTwoFA(ctx, accountID)
}

// Disable turns the second factor off and clears the stored secret. The
// password is re-verified for the same reason as Setup.
func (s *TwoFAService) Disable(ctx context.Context, accountID, password string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.TwoFAActive() {
		return ErrTwoFANotConfigured
	}
	if !account.HasPassword() {
		return ErrNoPasswordSet
	}
	if cryptox.VerifyPassword(password, *account.PasswordHash) != nil {
		return ErrInvalidCredentials
	}
	return s.Store.Accounts().DisableTwoFA(ctx, accountID)
}

// StartLoginChallenge records a pending second step for a 2FA-enabled
// account and, for delivered methods, sends the code. The returned
// challenge id is the opaque reference the client redeems.
func (s *TwoFAService) StartLoginChallenge(ctx context.Context, account domain.Account) (domain.TwoFAChallenge, error) {
	if account.TwoFAMethod == nil {
		return domain.TwoFAChallenge{}, ErrTwoFANotConfigured
	}

	challenge := domain.TwoFAChallenge{
		ID:        idx.New().String(),
		AccountID: account.ID,
		Method:    *account.TwoFAMethod,
		ExpiresAt: time.Now().UTC().Add(TwoFALoginTTL),
	}
	if err := s.Store.TwoFALogins().CreateTwoFALogin(ctx, challenge); err != nil {
		return domain.TwoFAChallenge{}, err
	}

	switch challenge.Method {
	case domain.TwoFAMethodEmail:
		if _, err := s.OTP.GenerateAndSend(ctx, account.EmailIdentifier(), domain.PurposeTwoFALogin, domain.ChannelEmail, account.EmailIdentifier()); err != nil {
			return domain.TwoFAChallenge{}, err
		}
	case domain.TwoFAMethodSMS:
		if _, err := s.OTP.GenerateAndSend(ctx, account.PhoneIdentifier(), domain.PurposeTwoFALogin, domain.ChannelSMS, account.PhoneIdentifier()); err != nil {
			return domain.TwoFAChallenge{}, err
		}
	}
	// totp needs no delivery; the authenticator app has the secret.

	return challenge, nil
}

// VerifyForLogin redeems a pending second step. On success the pending
// row is deleted and the account is returned for token issuance; too many
// wrong codes burn the challenge entirely.
func (s *TwoFAService) VerifyForLogin(ctx context.Context, challengeRef, code string) (domain.Account, error) {
	pending, err := s.Store.TwoFALogins().GetTwoFALogin(ctx, challengeRef)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrInvalidChallenge
		}
		return domain.Account{}, err
	}
	if pending.Attempts >= MaxTwoFALoginAttempts {
		return domain.Account{}, ErrTooManyAttempts
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, pending.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrInvalidChallenge
		}
		return domain.Account{}, err
	}

	if err := s.verifyCode(ctx, account, pending.Method, domain.PurposeTwoFALogin, code); err != nil {
		attempts, attErr := s.Store.TwoFALogins().IncrementTwoFALoginAttempts(ctx, pending.ID)
		if attErr != nil && !errors.Is(attErr, store.ErrNotFound) {
			return domain.Account{}, attErr
		}
		if attempts >= MaxTwoFALoginAttempts {
			_ = s.Store.TwoFALogins().DeleteTwoFALogin(ctx, pending.ID)
			return domain.Account{}, ErrTooManyAttempts
		}
		return domain.Account{}, err
	}

	if err := s.Store.TwoFALogins().DeleteTwoFALogin(ctx, pending.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}
	return account, nil
}

// CleanupExpired drops expired pending logins. Called by housekeeping.
func (s *TwoFAService) CleanupExpired(ctx context.Context) error {
	return s.Store.TwoFALogins().DeleteExpiredTwoFALogins(ctx)
}

func (s *TwoFAService) verifyCode(ctx context.Context, account domain.Account, method domain.TwoFAMethod, purpose domain.Purpose, code string) error {
	switch method {
	case domain.TwoFAMethodTOTP:
		if account.TwoFASecret == nil || !totp.Validate(code, *account.TwoFASecret) {
			return ErrOTPMismatch
		}
		return nil
	case domain.TwoFAMethodEmail:
		return s.OTP.Validate(ctx, account.EmailIdentifier(), purpose, code)
	case domain.TwoFAMethodSMS:
		return s.OTP.Validate(ctx, account.PhoneIdentifier(), purpose, code)
	default:
		return ErrTwoFANotConfigured
	}
}
