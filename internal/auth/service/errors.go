package service

import (
	"errors"
	"strings"
)

// Sentinel errors returned by the service layer. The HTTP layer maps these
// to status codes and client-safe messages; anything else is a 500.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrNoPasswordSet      = errors.New("no_password_set")
	ErrAlreadyInUse       = errors.New("identifier_in_use")
	ErrWeakPassword       = errors.New("weak_password")
	ErrPasswordReused     = errors.New("password_reused")

	ErrInvalidToken  = errors.New("invalid_token")
	ErrTokenExpired  = errors.New("token_expired")
	ErrTokenRevoked  = errors.New("token_revoked")
	ErrWrongTokenUse = errors.New("wrong_token_use")

	ErrOTPNotFound     = errors.New("otp_not_found")
	ErrOTPExpired      = errors.New("otp_expired")
	ErrOTPMismatch     = errors.New("otp_mismatch")
	ErrOTPConsumed     = errors.New("otp_consumed")
	ErrTooManyAttempts = errors.New("too_many_attempts")
	ErrTooManyRequests = errors.New("too_many_requests")

	ErrNotVerified        = errors.New("identifier_not_verified")
	ErrTwoFANotConfigured = errors.New("twofa_not_configured")
	ErrTwoFARequired      = errors.New("twofa_required")
	ErrInvalidChallenge   = errors.New("invalid_challenge")
)

// WeakPasswordError carries the specific unmet policy rules so the client
// can tell the user what to fix. errors.Is matches it to ErrWeakPassword.
type WeakPasswordError struct {
	Reasons []string
}

func (e *WeakPasswordError) Error() string {
	return "weak_password: " + strings.Join(e.Reasons, ", ")
}

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }
