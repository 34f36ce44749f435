package service

import (
	"context"
	"errors"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/cryptox"
)

// PasswordService owns the password lifecycle: authenticated change and
// the OTP-backed forgot/reset flow. Every successful mutation bumps the
// token version, revoking all outstanding sessions.
type PasswordService struct {
	Store store.Store
	OTP   *OTPEngine
}

// ChangePassword swaps the hash for an authenticated caller. The current
// password is re-verified, the new one must differ and pass policy, and
// hash update plus version bump commit atomically.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.HasPassword() {
		return ErrNoPasswordSet
	}
	if cryptox.VerifyPassword(currentPassword, *account.PasswordHash) != nil {
		return ErrInvalidCredentials
	}
	if newPassword == currentPassword {
		return ErrPasswordReused
	}
	if reasons := cryptox.ValidatePassword(newPassword); len(reasons) > 0 {
		return &WeakPasswordError{Reasons: reasons}
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdatePasswordHash(ctx, accountID, hash); err != nil {
			return err
		}
		_, err := tx.Accounts().IncrementTokenVersion(ctx, accountID)
		return err
	})
}

// ForgotPassword sends a reset code to the identifier's channel. The
// response shape is identical whether or not the identifier resolves, so
// the endpoint leaks nothing about account existence.
func (s *PasswordService) ForgotPassword(ctx context.Context, email, countryCode, phone *string) (domain.OTPResult, error) {
	if email != nil {
		if _, err := s.Store.Accounts().GetAccountByEmail(ctx, *email); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.OTPResult{}, nil
			}
			return domain.OTPResult{}, err
		}
		return s.OTP.GenerateAndSend(ctx, *email, domain.PurposePasswordReset, domain.ChannelEmail, *email)
	}

	if countryCode != nil && phone != nil {
		if _, err := s.Store.Accounts().GetAccountByPhone(ctx, *countryCode, *phone); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.OTPResult{}, nil
			}
			return domain.OTPResult{}, err
		}
		identifier := *countryCode + *phone
		return s.OTP.GenerateAndSend(ctx, identifier, domain.PurposePasswordReset, domain.ChannelSMS, identifier)
	}

	return domain.OTPResult{}, nil
}

// ResetPassword redeems a reset code and installs the new password. An
// identifier without an account fails the same way as a wrong code. A
// successful reset proves ownership of the contact channel, so it also
// clears the failed-login counter and lifts any lockout.
func (s *PasswordService) ResetPassword(ctx context.Context, email, countryCode, phone *string, code, newPassword string) error {
	if reasons := cryptox.ValidatePassword(newPassword); len(reasons) > 0 {
		return &WeakPasswordError{Reasons: reasons}
	}

	var (
		account    domain.Account
		identifier string
		err        error
	)
	switch {
	case email != nil:
		identifier = *email
		account, err = s.Store.Accounts().GetAccountByEmail(ctx, *email)
	case countryCode != nil && phone != nil:
		identifier = *countryCode + *phone
		account, err = s.Store.Accounts().GetAccountByPhone(ctx, *countryCode, *phone)
	default:
		return ErrOTPNotFound
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// No challenge can exist for an unknown identifier; report it
			// exactly like a bad code.
			return ErrOTPNotFound
		}
		return err
	}

	if err := s.OTP.Validate(ctx, identifier, domain.PurposePasswordReset, code); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdatePasswordHash(ctx, account.ID, hash); err != nil {
			return err
		}
		if err := tx.Accounts().ResetLoginAttempts(ctx, account.ID); err != nil {
			return err
		}
		_, err := tx.Accounts().IncrementTokenVersion(ctx, account.ID)
		return err
	})
}
