package service

import (
	"context"
	"errors"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
)

// VerificationService drives the email/phone verification state machine:
// initial proof of ownership after registration, and the staged
// stage-verify-commit flow for contact updates.
type VerificationService struct {
	Store store.Store
	OTP   *OTPEngine
}

// StartEmailVerification sends a code to the account's registered email.
func (s *VerificationService) StartEmailVerification(ctx context.Context, accountID string) (domain.OTPResult, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.OTPResult{}, err
	}
	if account.Email == nil {
		return domain.OTPResult{}, ErrOTPNotFound
	}
	return s.OTP.GenerateAndSend(ctx, *account.Email, domain.PurposeEmailVerify, domain.ChannelEmail, *account.Email)
}

// ConfirmEmail validates the code and flips the verified flag. Idempotent
// from the caller's view: confirming an already verified email just
// revalidates the code.
func (s *VerificationService) ConfirmEmail(ctx context.Context, accountID, code string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Email == nil {
		return ErrOTPNotFound
	}
	if err := s.OTP.Validate(ctx, *account.Email, domain.PurposeEmailVerify, code); err != nil {
		return err
	}
	return s.Store.Accounts().MarkEmailVerified(ctx, accountID)
}

// StartPhoneVerification sends a code to the account's registered phone.
func (s *VerificationService) StartPhoneVerification(ctx context.Context, accountID string) (domain.OTPResult, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.OTPResult{}, err
	}
	identifier := account.PhoneIdentifier()
	if identifier == "" {
		return domain.OTPResult{}, ErrOTPNotFound
	}
	return s.OTP.GenerateAndSend(ctx, identifier, domain.PurposePhoneVerify, domain.ChannelSMS, identifier)
}

// ConfirmPhone validates the code and flips the verified flag.
func (s *VerificationService) ConfirmPhone(ctx context.Context, accountID, code string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	identifier := account.PhoneIdentifier()
	if identifier == "" {
		return ErrOTPNotFound
	}
	if err := s.OTP.Validate(ctx, identifier, domain.PurposePhoneVerify, code); err != nil {
		return err
	}
	return s.Store.Accounts().MarkPhoneVerified(ctx, accountID)
}

// UpdateEmail stages a new address and sends the proof code there. The
// current address stays authoritative until the new one is confirmed, and
// must itself be verified before an update is allowed.
func (s *VerificationService) UpdateEmail(ctx context.Context, accountID, newEmail string) (domain.OTPResult, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.OTPResult{}, err
	}
	if !account.EmailVerified {
		return domain.OTPResult{}, ErrNotVerified
	}

	if _, err := s.Store.Accounts().GetAccountByEmail(ctx, newEmail); err == nil {
		return domain.OTPResult{}, ErrAlreadyInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.OTPResult{}, err
	}

	if err := s.Store.Accounts().StagePendingEmail(ctx, accountID, newEmail); err != nil {
		return domain.OTPResult{}, err
	}
	return s.OTP.GenerateAndSend(ctx, newEmail, domain.PurposeEmailVerify, domain.ChannelEmail, newEmail)
}

// ConfirmEmailUpdate validates the code sent to the staged address and
// commits the swap. A race with another account claiming the address in
// the meantime surfaces as ErrAlreadyInUse.
func (s *VerificationService) ConfirmEmailUpdate(ctx context.Context, accountID, code string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.PendingEmail == nil {
		return ErrOTPNotFound
	}
	if err := s.OTP.Validate(ctx, *account.PendingEmail, domain.PurposeEmailVerify, code); err != nil {
		return err
	}
	if err := s.Store.Accounts().CommitPendingEmail(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrAlreadyInUse
		}
		return err
	}
	return nil
}

// UpdatePhone stages a new number and sends the proof code there. The
// current number must be verified first.
func (s *VerificationService) UpdatePhone(ctx context.Context, accountID, countryCode, phone string) (domain.OTPResult, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.OTPResult{}, err
	}
	if !account.PhoneVerified {
		return domain.OTPResult{}, ErrNotVerified
	}

	if _, err := s.Store.Accounts().GetAccountByPhone(ctx, countryCode, phone); err == nil {
		return domain.OTPResult{}, ErrAlreadyInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.OTPResult{}, err
	}

	if err := s.Store.Accounts().StagePendingPhone(ctx, accountID, countryCode, phone); err != nil {
		return domain.OTPResult{}, err
	}
	identifier := countryCode + phone
	return s.OTP.GenerateAndSend(ctx, identifier, domain.PurposePhoneVerify, domain.ChannelSMS, identifier)
}

// ConfirmPhoneUpdate validates the code sent to the staged number and
// commits the swap.
func (s *VerificationService) ConfirmPhoneUpdate(ctx context.Context, accountID, code string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.PendingPhone == nil || account.PendingCountryCode == nil {
		return ErrOTPNotFound
	}
	identifier := *account.PendingCountryCode + *account.PendingPhone
	if err := s.OTP.Validate(ctx, identifier, domain.PurposePhoneVerify, code); err != nil {
		return err
	}
	if err := s.Store.Accounts().CommitPendingPhone(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrAlreadyInUse
		}
		return err
	}
	return nil
}
