package http

import (
	"errors"
	"net/http"

	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
	"github.com/driftlock/authd/pkg/slogx"
)

// writeServiceError maps service sentinels onto status codes and
// client-safe messages. Unknown errors are logged and reported as 500
// without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var weak *service.WeakPasswordError
	if errors.As(err, &weak) {
		httpx.Fail(w, http.StatusBadRequest, "password does not meet the policy", weak.Reasons...)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.Fail(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrNoPasswordSet):
		httpx.Fail(w, http.StatusBadRequest, "this account signs in with a social provider")
	case errors.Is(err, service.ErrAccountLocked):
		httpx.Fail(w, http.StatusForbidden, "account locked after repeated failures, reset your password to unlock")
	case errors.Is(err, service.ErrAlreadyInUse):
		httpx.Fail(w, http.StatusBadRequest, "identifier already in use")
	case errors.Is(err, service.ErrPasswordReused):
		httpx.Fail(w, http.StatusBadRequest, "new password must differ from the current password")
	case errors.Is(err, service.ErrTokenExpired):
		httpx.Fail(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrWrongTokenUse):
		httpx.Fail(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, service.ErrOTPNotFound),
		errors.Is(err, service.ErrOTPExpired),
		errors.Is(err, service.ErrOTPMismatch),
		errors.Is(err, service.ErrOTPConsumed):
		httpx.Fail(w, http.StatusBadRequest, "invalid or expired code")
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.Fail(w, http.StatusTooManyRequests, "too many attempts, request a new code")
	case errors.Is(err, service.ErrTooManyRequests):
		httpx.Fail(w, http.StatusTooManyRequests, "too many requests, please try again later")
	case errors.Is(err, service.ErrNotVerified):
		httpx.Fail(w, http.StatusForbidden, "a verified contact channel is required first")
	case errors.Is(err, service.ErrTwoFANotConfigured):
		httpx.Fail(w, http.StatusBadRequest, "two-factor authentication is not configured")
	case errors.Is(err, service.ErrInvalidChallenge):
		httpx.Fail(w, http.StatusUnauthorized, "invalid or expired login challenge")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "internal error")
	}
}
