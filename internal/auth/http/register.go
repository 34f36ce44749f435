package http

import (
	"net/http"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/pkg/httpx"
)

// RegisterHandler handles POST /v1/auth/register.
type RegisterHandler struct {
	Accounts *service.AccountService
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == nil && req.Phone == nil {
		httpx.Fail(w, http.StatusBadRequest, "email or phone is required")
		return
	}

	account, otp, err := h.Accounts.Register(r.Context(), service.RegisterInput{
		Email:       req.Email,
		CountryCode: req.CountryCode,
		Phone:       req.Phone,
		Password:    req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.OK(w, http.StatusCreated, "account created, verification code sent", map[string]any{
		"account_id":   account.ID,
		"verification": summarizeOTP(otp),
	})
}

func summarizeOTP(result domain.OTPResult) otpSummary {
	s := otpSummary{Delivered: result.Delivered}
	if result.ChallengeID != "" {
		s.Destination = result.Destination
		s.Channel = string(result.Channel)
		s.ExpiresAt = result.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return s
}
