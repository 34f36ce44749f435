package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/obs"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/cryptox"
	"github.com/driftlock/authd/pkg/idx"
	"github.com/driftlock/authd/pkg/slogx"
)

// MaxLoginAttempts locks the account after this many consecutive failed
// password logins. A successful login resets the counter.
const MaxLoginAttempts = 10

// AccountService is the top-level orchestrator: it composes the token,
// OTP and 2FA services into the register/login/social use cases and
// enforces the cross-cutting rules (anti-enumeration, lockout, duplicate
// prevention).
type AccountService struct {
	Store  store.Store
	Tokens *TokenService
	OTP    *OTPEngine
	TwoFA  *TwoFAService

	dummyOnce sync.Once
	dummyHash string
}

// RegisterInput carries pre-validated registration fields. At least one of
// Email or Phone is set; shape validation happened at the HTTP layer.
type RegisterInput struct {
	Email       *string
	CountryCode *string
	Phone       *string
	Password    string
}

// Register creates an unverified account and kicks off verification of the
// primary channel. Duplicate identifiers and weak passwords are rejected
// before anything is written.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.Account, domain.OTPResult, error) {
	if reasons := cryptox.ValidatePassword(in.Password); len(reasons) > 0 {
		return domain.Account{}, domain.OTPResult{}, &WeakPasswordError{Reasons: reasons}
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Account{}, domain.OTPResult{}, err
	}

	account := domain.Account{
		ID:           idx.New().String(),
		Email:        in.Email,
		Phone:        in.Phone,
		CountryCode:  in.CountryCode,
		PasswordHash: &hash,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, domain.OTPResult{}, ErrAlreadyInUse
		}
		return domain.Account{}, domain.OTPResult{}, err
	}

	obs.ObserveRegistration()

	created, err := s.Store.Accounts().GetAccountByID(ctx, account.ID)
	if err != nil {
		return domain.Account{}, domain.OTPResult{}, err
	}

	// Email is the primary channel when both are present.
	var result domain.OTPResult
	switch {
	case created.Email != nil:
		result, err = s.OTP.GenerateAndSend(ctx, *created.Email, domain.PurposeEmailVerify, domain.ChannelEmail, *created.Email)
	case created.PhoneIdentifier() != "":
		result, err = s.OTP.GenerateAndSend(ctx, created.PhoneIdentifier(), domain.PurposePhoneVerify, domain.ChannelSMS, created.PhoneIdentifier())
	}
	if err != nil {
		return domain.Account{}, domain.OTPResult{}, err
	}

	return created, result, nil
}

// LoginInput identifies an account by exactly one of email or phone.
type LoginInput struct {
	Email       *string
	CountryCode *string
	Phone       *string
	Password    string
}

// ResendInput asks for a fresh code for an existing identifier.
type ResendInput struct {
	Email       *string
	CountryCode *string
	Phone       *string
	Purpose     domain.Purpose
}

// Login verifies a password and either issues tokens or, for 2FA-enabled
// accounts, opens a second-step challenge. Unknown identifiers and wrong
// passwords are indistinguishable in both response and timing.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)

	account, err := s.resolve(ctx, in.Email, in.CountryCode, in.Phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same hashing cost as a real verification so the
			// response time does not reveal account existence.
			s.equalizeTiming(in.Password)
			obs.ObserveLogin("invalid")
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, err
	}

	if !account.HasPassword() {
		s.equalizeTiming(in.Password)
		obs.ObserveLogin("invalid")
		return domain.LoginResult{}, ErrNoPasswordSet
	}

	if account.LoginAttempts >= MaxLoginAttempts {
		obs.ObserveLogin("locked")
		return domain.LoginResult{}, ErrAccountLocked
	}

	if cryptox.VerifyPassword(in.Password, *account.PasswordHash) != nil {
		attempts, err := s.Store.Accounts().IncrementLoginAttempts(ctx, account.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, err
		}
		if attempts >= MaxLoginAttempts {
			l.Info("account locked after repeated failures", slog.String("account_id", account.ID))
			obs.ObserveLogin("locked")
			return domain.LoginResult{}, ErrAccountLocked
		}
		obs.ObserveLogin("invalid")
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	if err := s.Store.Accounts().ResetLoginAttempts(ctx, account.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.LoginResult{}, err
	}

	if account.TwoFAActive() {
		challenge, err := s.TwoFA.StartLoginChallenge(ctx, account)
		if err != nil {
			return domain.LoginResult{}, err
		}
		obs.ObserveLogin("twofa_pending")
		return domain.LoginResult{
			TwoFARequired: true,
			ChallengeRef:  challenge.ID,
			Method:        challenge.Method,
		}, nil
	}

	tokens, err := s.Tokens.Issue(account.ID, account.TokenVersion)
	if err != nil {
		return domain.LoginResult{}, err
	}
	obs.ObserveLogin("ok")
	return domain.LoginResult{Tokens: tokens}, nil
}

// CompleteTwoFALogin redeems a pending second step and issues tokens.
func (s *AccountService) CompleteTwoFALogin(ctx context.Context, challengeRef, code string) (*domain.TokenPair, error) {
	account, err := s.TwoFA.VerifyForLogin(ctx, challengeRef, code)
	if err != nil {
		return nil, err
	}
	obs.ObserveLogin("ok")
	return s.Tokens.Issue(account.ID, account.TokenVersion)
}

// SocialLogin logs in or creates the account linked to a federated
// identity. The provider assertion was already verified upstream; this
// layer only receives the resulting claims. Email claimed by the provider
// counts as verified.
func (s *AccountService) SocialLogin(ctx context.Context, provider, providerID string, email *string) (*domain.TokenPair, error) {
	account, err := s.Store.Accounts().GetAccountByProvider(ctx, provider, providerID)
	if errors.Is(err, store.ErrNotFound) {
		account = domain.Account{
			ID:            idx.New().String(),
			Email:         email,
			EmailVerified: email != nil,
			Provider:      &provider,
			ProviderID:    &providerID,
		}
		if createErr := s.Store.Accounts().CreateAccount(ctx, account); createErr != nil {
			if errors.Is(createErr, store.ErrAlreadyExists) {
				return nil, ErrAlreadyInUse
			}
			return nil, createErr
		}
		obs.ObserveRegistration()
	} else if err != nil {
		return nil, err
	}

	obs.ObserveLogin("ok")
	return s.Tokens.Issue(account.ID, account.TokenVersion)
}

// ResendOTP re-generates the code for an identifier and purpose. Unknown
// identifiers come back success-shaped with nothing created or delivered,
// so the endpoint cannot be used to probe for accounts.
func (s *AccountService) ResendOTP(ctx context.Context, in ResendInput) (domain.OTPResult, error) {
	_, err := s.resolve(ctx, in.Email, in.CountryCode, in.Phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OTPResult{}, nil
		}
		return domain.OTPResult{}, err
	}

	if in.Email != nil {
		return s.OTP.GenerateAndSend(ctx, *in.Email, in.Purpose, domain.ChannelEmail, *in.Email)
	}
	identifier := *in.CountryCode + *in.Phone
	return s.OTP.GenerateAndSend(ctx, identifier, in.Purpose, domain.ChannelSMS, identifier)
}

// LogoutAll revokes every outstanding token for the account. Single-device
// logout is a client-side discard; tokens are stateless.
func (s *AccountService) LogoutAll(ctx context.Context, accountID string) error {
	return s.Tokens.InvalidateAll(ctx, accountID)
}

func (s *AccountService) resolve(ctx context.Context, email, countryCode, phone *string) (domain.Account, error) {
	if email != nil {
		return s.Store.Accounts().GetAccountByEmail(ctx, *email)
	}
	if countryCode != nil && phone != nil {
		return s.Store.Accounts().GetAccountByPhone(ctx, *countryCode, *phone)
	}
	return domain.Account{}, store.ErrNotFound
}

// equalizeTiming runs a throwaway password verification so failure paths
// that skip the real one take comparable time.
func (s *AccountService) equalizeTiming(password string) {
	s.dummyOnce.Do(func() {
		hash, err := cryptox.HashPassword("equalization-placeholder")
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_ = cryptox.VerifyPassword(password, s.dummyHash)
	}
}
