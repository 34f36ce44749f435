package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/driftlock/authd/pkg/httpx"
)

// validate is the shared schema validator; services receive only input
// that already passed it.
var validate = validator.New(validator.WithRequiredStructEnabled())

// decode parses and validates a JSON request body into dst. On failure it
// writes the 400 envelope itself and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var details []string
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				details = append(details, fe.Field()+" failed "+fe.Tag())
			}
		}
		httpx.Fail(w, http.StatusBadRequest, "validation failed", details...)
		return false
	}
	return true
}

type registerRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,max=5,required_with=Phone"`
	Phone       *string `json:"phone" validate:"omitempty,numeric,min=4,max=15,required_with=CountryCode"`
	Password    string  `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,max=5,required_with=Phone"`
	Phone       *string `json:"phone" validate:"omitempty,numeric,required_with=CountryCode"`
	Password    string  `json:"password" validate:"required"`
}

type twoFALoginRequest struct {
	ChallengeRef string `json:"challenge_ref" validate:"required"`
	Code         string `json:"code" validate:"required,min=6,max=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type forgotPasswordRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,required_with=Phone"`
	Phone       *string `json:"phone" validate:"omitempty,numeric,required_with=CountryCode"`
}

type resetPasswordRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,required_with=Phone"`
	Phone       *string `json:"phone" validate:"omitempty,numeric,required_with=CountryCode"`
	Code        string  `json:"code" validate:"required,numeric,min=4,max=8"`
	NewPassword string  `json:"new_password" validate:"required,min=8,max=128"`
}

type resendOTPRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	CountryCode *string `json:"country_code" validate:"omitempty,startswith=+,required_with=Phone"`
	Phone       *string `json:"phone" validate:"omitempty,numeric,required_with=CountryCode"`
	Purpose     string  `json:"purpose" validate:"required,oneof=email_verify phone_verify password_reset"`
}

type confirmCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,min=4,max=8"`
}

type updateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type updatePhoneRequest struct {
	CountryCode string `json:"country_code" validate:"required,startswith=+,max=5"`
	Phone       string `json:"phone" validate:"required,numeric,min=4,max=15"`
}

type socialLoginRequest struct {
	Provider   string  `json:"provider" validate:"required,oneof=google apple github"`
	ProviderID string  `json:"provider_id" validate:"required"`
	Email      *string `json:"email" validate:"omitempty,email"`
}

type twoFASetupRequest struct {
	Password string `json:"password" validate:"required"`
	Method   string `json:"method" validate:"required,oneof=email sms totp"`
}

type twoFADisableRequest struct {
	Password string `json:"password" validate:"required"`
}

// otpSummary is the client-facing slice of an OTP result: enough to drive
// UX without echoing anything secret.
type otpSummary struct {
	Destination string `json:"destination,omitempty"`
	Channel     string `json:"channel,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Delivered   bool   `json:"delivered"`
}
