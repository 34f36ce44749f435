package http

import (
	"net/http"

	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// VerifyHandler covers channel verification and the staged contact-update
// flows.
type VerifyHandler struct {
	Verify *service.VerificationService
}

// HandleStartEmail handles POST /v1/auth/verify/email.
func (h *VerifyHandler) HandleStartEmail(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	result, err := h.Verify.StartEmailVerification(r.Context(), principal.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "verification code sent", summarizeOTP(result))
}

// HandleConfirmEmail handles POST /v1/auth/verify/email/confirm.
func (h *VerifyHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req confirmCodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Verify.ConfirmEmail(r.Context(), principal.AccountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "email verified", nil)
}

// HandleStartPhone handles POST /v1/auth/verify/phone.
func (h *VerifyHandler) HandleStartPhone(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	result, err := h.Verify.StartPhoneVerification(r.Context(), principal.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "verification code sent", summarizeOTP(result))
}

// HandleConfirmPhone handles POST /v1/auth/verify/phone/confirm.
func (h *VerifyHandler) HandleConfirmPhone(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req confirmCodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Verify.ConfirmPhone(r.Context(), principal.AccountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "phone verified", nil)
}

// HandleUpdateEmail handles PUT /v1/account/email: stages the new address
// and sends the proof code there.
func (h *VerifyHandler) HandleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req updateEmailRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Verify.UpdateEmail(r.Context(), principal.AccountID, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "confirmation code sent to the new address", summarizeOTP(result))
}

// HandleConfirmUpdateEmail handles POST /v1/account/email/confirm.
func (h *VerifyHandler) HandleConfirmUpdateEmail(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req confirmCodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Verify.ConfirmEmailUpdate(r.Context(), principal.AccountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "email updated", nil)
}

// HandleUpdatePhone handles PUT /v1/account/phone.
func (h *VerifyHandler) HandleUpdatePhone(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req updatePhoneRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Verify.UpdatePhone(r.Context(), principal.AccountID, req.CountryCode, req.Phone)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "confirmation code sent to the new number", summarizeOTP(result))
}

// HandleConfirmUpdatePhone handles POST /v1/account/phone/confirm.
func (h *VerifyHandler) HandleConfirmUpdatePhone(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req confirmCodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Verify.ConfirmPhoneUpdate(r.Context(), principal.AccountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "phone updated", nil)
}
