package http

import (
	"net/http"

	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// LoginHandler handles the password login and its 2FA completion step.
type LoginHandler struct {
	Accounts *service.AccountService
}

// HandleLogin handles POST /v1/auth/login.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == nil && req.Phone == nil {
		httpx.Fail(w, http.StatusBadRequest, "email or phone is required")
		return
	}

	result, err := h.Accounts.Login(r.Context(), service.LoginInput{
		Email:       req.Email,
		CountryCode: req.CountryCode,
		Phone:       req.Phone,
		Password:    req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if result.TwoFARequired {
		httpx.OK(w, http.StatusOK, "second factor required", map[string]any{
			"twofa_required": true,
			"challenge_ref":  result.ChallengeRef,
			"method":         string(result.Method),
		})
		return
	}

	httpx.OK(w, http.StatusOK, "login successful", result.Tokens)
}

// HandleTwoFALogin handles POST /v1/auth/login/2fa.
func (h *LoginHandler) HandleTwoFALogin(w http.ResponseWriter, r *http.Request) {
	var req twoFALoginRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Accounts.CompleteTwoFALogin(r.Context(), req.ChallengeRef, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "login successful", pair)
}

// TokenHandler handles refresh and logout.
type TokenHandler struct {
	Tokens   *service.TokenService
	Accounts *service.AccountService
}

// HandleRefresh handles POST /v1/auth/token/refresh.
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "token refreshed", pair)
}

// HandleLogout handles POST /v1/auth/logout. Tokens are stateless, so a
// single-device logout is the client discarding its pair; the endpoint
// exists to make that explicit and uniform.
func (h *TokenHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := principalFrom(r.Context()); !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	httpx.OK(w, http.StatusOK, "logged out, discard the token pair", nil)
}

// HandleLogoutAll handles POST /v1/auth/logout-all: bumps the token
// version, revoking every outstanding token for the account.
func (h *TokenHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if err := h.Accounts.LogoutAll(r.Context(), principal.AccountID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "all sessions revoked", nil)
}
