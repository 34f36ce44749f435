package http

import (
	"net/http"

	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// PasswordHandler covers the password lifecycle endpoints.
type PasswordHandler struct {
	Password *service.PasswordService
}

// HandleChange handles POST /v1/auth/password/change (authenticated).
func (h *PasswordHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Password.ChangePassword(r.Context(), principal.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "password changed, all other sessions have been signed out", nil)
}

// HandleForgot handles POST /v1/auth/password/forgot. The response shape
// is identical whether or not the identifier resolves to an account.
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == nil && req.Phone == nil {
		httpx.Fail(w, http.StatusBadRequest, "email or phone is required")
		return
	}

	if _, err := h.Password.ForgotPassword(r.Context(), req.Email, req.CountryCode, req.Phone); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "if the account exists, a reset code has been sent", nil)
}

// HandleReset handles POST /v1/auth/password/reset.
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == nil && req.Phone == nil {
		httpx.Fail(w, http.StatusBadRequest, "email or phone is required")
		return
	}

	if err := h.Password.ResetPassword(r.Context(), req.Email, req.CountryCode, req.Phone, req.Code, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "password reset, all sessions have been signed out", nil)
}
