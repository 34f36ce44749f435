package domain

import "time"

// TwoFAMethod is the second-factor delivery preference recorded on setup.
type TwoFAMethod string

const (
	TwoFAMethodEmail TwoFAMethod = "email"
	TwoFAMethodSMS   TwoFAMethod = "sms"
	TwoFAMethodTOTP  TwoFAMethod = "totp"
)

// TwoFASetup is what a setup request hands back before confirmation. For
// the totp method it carries the shared secret and provisioning URL; for
// delivered methods it reports where the code went.
type TwoFASetup struct {
	Method     TwoFAMethod
	Secret     string // base32 TOTP secret, totp only
	OtpauthURL string // otpauth:// provisioning URL, totp only
	OTP        *OTPResult
}

// Account is the identity record. Email and phone are both optional but
// uniqueness-enforced; pure social accounts have no password hash at all.
type Account struct {
	ID string

	Email       *string
	Phone       *string
	CountryCode *string // compound key with Phone

	// PendingEmail/PendingPhone stage a contact update. The verified value
	// stays authoritative until the pending one is confirmed by OTP.
	PendingEmail       *string
	PendingPhone       *string
	PendingCountryCode *string

	PasswordHash *string // nil for pure social accounts

	EmailVerified bool
	PhoneVerified bool

	// TokenVersion invalidates every previously issued token when bumped.
	TokenVersion int64

	TwoFAEnabled *time.Time // timestamp when 2FA was enabled (nil = disabled)
	TwoFAMethod  *TwoFAMethod
	TwoFASecret  *string // TOTP secret (base32), nil for OTP-delivered methods

	LoginAttempts        int
	LastPasswordChangeAt *time.Time

	Provider   *string // social provider name (e.g. "google")
	ProviderID *string // subject id at the provider, unique per provider

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether password-based login is possible at all.
func (a Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// TwoFAActive reports whether a second login step is required.
func (a Account) TwoFAActive() bool {
	return a.TwoFAEnabled != nil
}

// EmailIdentifier returns the canonical email identifier or "".
func (a Account) EmailIdentifier() string {
	if a.Email == nil {
		return ""
	}
	return *a.Email
}

// PhoneIdentifier returns the canonical phone identifier (country code +
// number) or "".
func (a Account) PhoneIdentifier() string {
	if a.Phone == nil || a.CountryCode == nil {
		return ""
	}
	return *a.CountryCode + *a.Phone
}
