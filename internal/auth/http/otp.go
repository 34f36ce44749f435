package http

import (
	"net/http"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// ResendHandler handles POST /v1/auth/otp/resend. The response is the
// same whether or not the identifier exists.
type ResendHandler struct {
	Accounts *service.AccountService
}

func (h *ResendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == nil && req.Phone == nil {
		httpx.Fail(w, http.StatusBadRequest, "email or phone is required")
		return
	}

	_, err := h.Accounts.ResendOTP(r.Context(), service.ResendInput{
		Email:       req.Email,
		CountryCode: req.CountryCode,
		Phone:       req.Phone,
		Purpose:     domain.Purpose(req.Purpose),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusOK, "if the account exists, a new code has been sent", nil)
}
