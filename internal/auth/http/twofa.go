package http

import (
	"net/http"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// TwoFAHandler covers second-factor setup, confirmation and disable.
type TwoFAHandler struct {
	TwoFA *service.TwoFAService
}

// HandleSetup handles POST /v1/2fa/setup.
func (h *TwoFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req twoFASetupRequest
	if !decode(w, r, &req) {
		return
	}

	setup, err := h.TwoFA.Setup(r.Context(), principal.AccountID, req.Password, domain.TwoFAMethod(req.Method))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data := map[string]any{"method": string(setup.Method)}
	if setup.Secret != "" {
		data["secret"] = setup.Secret
		data["otpauth_url"] = setup.OtpauthURL
	}
	if setup.OTP != nil {
		data["verification"] = summarizeOTP(*setup.OTP)
	}

	httpx.OK(w, http.StatusOK, "confirm the setup with the code to enable", data)
}

// HandleConfirm handles POST /v1/2fa/confirm.
func (h *TwoFAHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req confirmCodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.TwoFA.ConfirmSetup(r.Context(), principal.AccountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "two-factor authentication enabled", nil)
}

// HandleDisable handles DELETE /v1/2fa.
func (h *TwoFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req twoFADisableRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.TwoFA.Disable(r.Context(), principal.AccountID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "two-factor authentication disabled", nil)
}
